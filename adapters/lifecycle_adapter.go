package adapters

// LifecycleExtension grants the process extra run time while a flush is in
// progress, on platforms that suspend background work.
//
// Every token returned by Begin is passed to End exactly once.
type LifecycleExtension interface {
	Begin() any
	End(token any)
}

// NoOpLifecycleExtension is used when the platform has no background-execution grant.
type NoOpLifecycleExtension struct{}

// Ensure NoOpLifecycleExtension implements LifecycleExtension interface
var _ LifecycleExtension = NoOpLifecycleExtension{}

func (NoOpLifecycleExtension) Begin() any    { return nil }
func (NoOpLifecycleExtension) End(token any) {}

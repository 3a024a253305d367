package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// writeJSON writes one JSON object built by fields, followed by a newline.
func writeJSON(out io.Writer, fields func(obj *jwriter.ObjectState)) error {
	w := jwriter.NewWriter()
	obj := w.Object()
	fields(&obj)
	obj.End()
	if err := w.Error(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%s\n", w.Bytes())
	return err
}

// writeFlagsText prints one flag per line in key order.
func writeFlagsText(out io.Writer, flags ldvalue.ValueMap) {
	if flags.Count() == 0 {
		fmt.Fprintln(out, "No feature flags")
		return
	}
	keys := flags.Keys(nil)
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %s = %s\n", k, flags.Get(k).JSONString())
	}
}

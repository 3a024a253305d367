package courier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/Tap30/courier-go/adapters"
)

const (
	batchPath  = "/batch"
	decidePath = "/decide?v=2"
	userAgent  = "courier-go/" + Version
)

// Outcome is the classification of one batch send.
type Outcome int

const (
	// OutcomeSucceeded means the batch was accepted; it is removed from the queue.
	OutcomeSucceeded Outcome = iota
	// OutcomeRetry means the batch goes back to pending unchanged.
	OutcomeRetry
	// OutcomeDiscard means the batch is dropped permanently.
	OutcomeDiscard
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeRetry:
		return "retry"
	case OutcomeDiscard:
		return "discard"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// ClassifyStatus maps an HTTP status to an Outcome.
func ClassifyStatus(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return OutcomeSucceeded
	case status >= 300 && status < 400:
		return OutcomeRetry
	case status == http.StatusTooManyRequests:
		return OutcomeRetry
	case status >= 400 && status < 500:
		return OutcomeDiscard
	default:
		return OutcomeRetry
	}
}

// Sender delivers one batch and classifies the result.
type Sender interface {
	Send(ctx context.Context, batch []Event) Outcome
}

// FlagFetcher resolves the feature flags for a subject.
type FlagFetcher interface {
	ResolveFlags(ctx context.Context, distinctID string) (ldvalue.ValueMap, error)
}

// Transport performs the network exchanges with the ingestion service.
type Transport struct {
	batchURL  string
	decideURL string
	apiKey    string
	http      HTTPAdapter
	logger    LoggerAdapter
	headers   map[string]string
	now       func() time.Time
}

var (
	_ Sender      = (*Transport)(nil)
	_ FlagFetcher = (*Transport)(nil)
)

// NewTransport creates a Transport for the service at host.
func NewTransport(host, apiKey string, httpAdapter HTTPAdapter, logger LoggerAdapter) *Transport {
	base := strings.TrimRight(host, "/")
	return &Transport{
		batchURL:  base + batchPath,
		decideURL: base + decidePath,
		apiKey:    apiKey,
		http:      httpAdapter,
		logger:    logger,
		headers:   map[string]string{"User-Agent": userAgent},
		now:       time.Now,
	}
}

// EncodeBatch builds the ingestion request body.
func (t *Transport) EncodeBatch(batch []Event, sentAt time.Time) ([]byte, error) {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("sent_at").String(sentAt.UTC().Format(adapters.TimestampFormat))
	adapters.WriteEvents(obj.Name("batch"), batch)
	obj.Name("api_key").String(t.apiKey)
	obj.End()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Send posts batch to the ingestion endpoint. It never returns an error: every
// result is folded into an Outcome.
func (t *Transport) Send(ctx context.Context, batch []Event) Outcome {
	body, err := t.EncodeBatch(batch, t.now())
	if err != nil {
		// resending the same payload cannot succeed
		t.logger.Error("Failed to encode batch of %d events, dropping: %v", len(batch), err)
		return OutcomeDiscard
	}

	resp, err := t.http.Post(ctx, t.batchURL, body, t.headers)
	if err != nil {
		t.logger.Warn("Network error sending batch of %d events: %v", len(batch), err)
		return OutcomeRetry
	}

	outcome := ClassifyStatus(resp.Status)
	switch outcome {
	case OutcomeSucceeded:
		t.logger.Debug("Batch of %d events accepted with status %d", len(batch), resp.Status)
	case OutcomeDiscard:
		t.logger.Warn("Batch of %d events rejected with status %d, dropping", len(batch), resp.Status)
	default:
		t.logger.Warn("Batch of %d events failed with status %d, will retry", len(batch), resp.Status)
	}
	return outcome
}

// ResolveFlags asks the decision endpoint for the flags of distinctID. Errors are
// returned to the caller; there is no internal retry.
func (t *Transport) ResolveFlags(ctx context.Context, distinctID string) (ldvalue.ValueMap, error) {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("api_key").String(t.apiKey)
	obj.Name("distinct_id").String(distinctID)
	obj.End()
	if err := w.Error(); err != nil {
		return ldvalue.ValueMap{}, fmt.Errorf("encode decide request: %w", err)
	}

	resp, err := t.http.Post(ctx, t.decideURL, w.Bytes(), t.headers)
	if err != nil {
		return ldvalue.ValueMap{}, err
	}
	if !resp.OK {
		return ldvalue.ValueMap{}, &HTTPError{Status: resp.Status}
	}
	return decodeDecideResponse(resp.Body)
}

var errNoFeatureFlags = errors.New("decide response has no feature_flags")

func decodeDecideResponse(body []byte) (ldvalue.ValueMap, error) {
	r := jreader.NewReader(body)
	var flags ldvalue.ValueMap
	found := false
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "feature_flags", "featureFlags":
			flags.ReadFromJSONReader(&r)
			found = true
		}
	}
	if err := r.Error(); err != nil {
		return ldvalue.ValueMap{}, fmt.Errorf("decode decide response: %w", err)
	}
	if !found {
		return ldvalue.ValueMap{}, errNoFeatureFlags
	}
	return flags, nil
}

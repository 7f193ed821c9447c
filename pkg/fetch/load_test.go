package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mweber-dev/pagefetch/internal/testutil"
)

func loadOptions() *Options {
	return &Options{
		RetryCount: intPtr(0),
		RetryDelay: durPtr(time.Millisecond),
	}
}

func TestLoad_TwoPageTokenScenario(t *testing.T) {
	mock := testutil.NewMockTable()
	defer mock.Close()

	mock.QueueResponses("/items",
		testutil.NewPageResponse(`{"value": [{"id": 1}]}`, map[string]string{
			"x-ms-continuation-NextPartitionKey": "A",
		}),
		testutil.NewPageResponse(`{"value": [{"id": 2}]}`, nil),
	)

	records, err := Load(context.Background(), mock.URL()+"/items", loadOptions())

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	got, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(got) != `[{"id": 1},{"id": 2}]` {
		t.Errorf("records = %s, want [{\"id\": 1},{\"id\": 2}]", got)
	}
}

func TestLoad_Idempotent(t *testing.T) {
	mock := testutil.NewMockTable()
	defer mock.Close()

	mock.SetResponse("/items", testutil.NewPageResponse(
		`{"value": [{"id": 1}, {"id": 2}]}`, nil))

	first, err := Load(context.Background(), mock.URL()+"/items", loadOptions())
	if err != nil {
		t.Fatalf("First load failed: %v", err)
	}
	second, err := Load(context.Background(), mock.URL()+"/items", loadOptions())
	if err != nil {
		t.Fatalf("Second load failed: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("Loads differ: %s vs %s", a, b)
	}
}

func TestLoad_Callbacks_Success(t *testing.T) {
	mock := testutil.NewMockTable()
	defer mock.Close()

	mock.SetResponse("/items", testutil.NewPageResponse(`{"value": [{"id": 1}]}`, nil))

	var successCalls, errorCalls, finallyCalls int
	var seen []json.RawMessage

	opts := loadOptions()
	opts.OnSuccess = func(records []json.RawMessage) {
		successCalls++
		seen = records
	}
	opts.OnError = func(err error) { errorCalls++ }
	opts.OnFinally = func() { finallyCalls++ }

	records, err := Load(context.Background(), mock.URL()+"/items", opts)

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if successCalls != 1 {
		t.Errorf("OnSuccess calls = %d, want 1", successCalls)
	}
	if errorCalls != 0 {
		t.Errorf("OnError calls = %d, want 0", errorCalls)
	}
	if finallyCalls != 1 {
		t.Errorf("OnFinally calls = %d, want 1", finallyCalls)
	}
	if len(seen) != len(records) {
		t.Errorf("OnSuccess saw %d records, caller got %d", len(seen), len(records))
	}
}

func TestLoad_Callbacks_Failure(t *testing.T) {
	mock := testutil.NewMockTable()
	defer mock.Close()

	mock.SetResponse("/items", testutil.NewServerErrorResponse())

	var successCalls, finallyCalls int
	var handled error

	opts := loadOptions()
	opts.OnSuccess = func(records []json.RawMessage) { successCalls++ }
	opts.OnError = func(err error) { handled = err }
	opts.OnFinally = func() { finallyCalls++ }

	records, err := Load(context.Background(), mock.URL()+"/items", opts)

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	// OnError does not suppress propagation.
	if handled == nil || !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected OnError to see the retry-exhausted error, got %v (returned %v)", handled, err)
	}
	if records != nil {
		t.Errorf("Expected nil records on failure, got %d", len(records))
	}
	if successCalls != 0 {
		t.Errorf("OnSuccess calls = %d, want 0", successCalls)
	}
	if finallyCalls != 1 {
		t.Errorf("OnFinally calls = %d, want 1", finallyCalls)
	}
}

func TestLoad_NoCallbacksStillReturnsError(t *testing.T) {
	mock := testutil.NewMockTable()
	defer mock.Close()

	mock.SetResponse("/items", testutil.NewServerErrorResponse())

	_, err := Load(context.Background(), mock.URL()+"/items", loadOptions())

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
}

func TestLoad_NilOptions(t *testing.T) {
	mock := testutil.NewMockTable()
	defer mock.Close()

	// Defaults apply; the default handler serves an empty table.
	records, err := Load(context.Background(), mock.URL()+"/anything", nil)

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}

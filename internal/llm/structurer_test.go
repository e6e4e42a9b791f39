package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/household-docs/internal/async"
	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/learn"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type reply struct {
	text  string
	err   error
	block bool // wait for ctx to end
}

// scriptedModel returns its replies in order and records every prompt.
type scriptedModel struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	i := len(m.prompts)
	m.prompts = append(m.prompts, prompt)
	r := m.replies[len(m.replies)-1]
	if i < len(m.replies) {
		r = m.replies[i]
	}
	m.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.text, r.err
}

func (m *scriptedModel) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *countingObserver) ObserveAttempt(_ string, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

const validReceipt = `{"merchant":"STORE A","date":"2026-01-15","total":6.49,"items":[{"name":"MILK","price":3.99,"quantity":1,"category":"Dairy"}]}`

func TestStructureFirstAttempt(t *testing.T) {
	m := &scriptedModel{replies: []reply{{text: "```json\n" + validReceipt + "\n```"}}}
	s := NewStructurer(m, quietLogger())

	p, err := s.Structure(context.Background(), Request{Text: "STORE A", Type: entity.DocumentReceipt})
	require.NoError(t, err)
	rp, ok := p.(*ReceiptPayload)
	require.True(t, ok)
	assert.Equal(t, "STORE A", rp.Merchant.Value)
	require.Len(t, rp.Items, 1)
	assert.Equal(t, "3.99", rp.Items[0].Price.Value.StringFixed(2))
	assert.Len(t, m.calls(), 1)
}

func TestInvalidThenValidCarriesParseError(t *testing.T) {
	bad := `{"merchant": "STORE A", "total": 6.49,,}`
	m := &scriptedModel{replies: []reply{{text: bad}, {text: validReceipt}}}
	obs := &countingObserver{}
	s := NewStructurer(m, quietLogger(), WithObserver(obs))

	p, err := s.Structure(context.Background(), Request{Text: "STORE A", Type: entity.DocumentReceipt})
	require.NoError(t, err)
	require.NotNil(t, p)

	var v any
	parseErr := json.Unmarshal([]byte(bad), &v)
	require.Error(t, parseErr)

	prompts := m.calls()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "Previous output was invalid JSON. Error: "+parseErr.Error())
	assert.Contains(t, prompts[1], "Incorrect Output: "+bad)
	assert.Contains(t, prompts[1], "Original Schema: "+SchemaExample(entity.DocumentReceipt))
	assert.Equal(t, []string{"unparseable", "ok"}, obs.outcomes)
}

func TestAlwaysInvalidExhausts(t *testing.T) {
	m := &scriptedModel{replies: []reply{{text: "not json at all"}}}
	s := NewStructurer(m, quietLogger())

	_, err := s.Structure(context.Background(), Request{Text: "x", Type: entity.DocumentBankStatement})
	var sf *StructuringFailedError
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, ReasonUnparseable, sf.Reason)
	assert.Equal(t, 3, sf.Attempts)
	assert.Len(t, m.calls(), 3)
}

func TestWrongShapeIsUnparseable(t *testing.T) {
	m := &scriptedModel{replies: []reply{{text: `[1,2,3]`}, {text: `{"transactions":[]}`}}}
	s := NewStructurer(m, quietLogger())

	p, err := s.Structure(context.Background(), Request{Text: "x", Type: entity.DocumentBankStatement})
	require.NoError(t, err)
	_, ok := p.(*StatementPayload)
	assert.True(t, ok)
	assert.Contains(t, m.calls()[1], "Previous output was invalid JSON")
}

func TestTimeoutRetriesWithOriginalPrompt(t *testing.T) {
	m := &scriptedModel{replies: []reply{{block: true}, {text: validReceipt}}}
	s := NewStructurer(m, quietLogger(), WithAttemptTimeout(20*time.Millisecond))

	_, err := s.Structure(context.Background(), Request{Text: "STORE A", Type: entity.DocumentReceipt})
	require.NoError(t, err)
	prompts := m.calls()
	require.Len(t, prompts, 2)
	assert.Equal(t, prompts[0], prompts[1])
}

func TestTimeoutExhausts(t *testing.T) {
	m := &scriptedModel{replies: []reply{{block: true}}}
	s := NewStructurer(m, quietLogger(), WithAttemptTimeout(10*time.Millisecond))

	_, err := s.Structure(context.Background(), Request{Text: "x"})
	var sf *StructuringFailedError
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, ReasonTimeout, sf.Reason)
	assert.Equal(t, 3, sf.Attempts)
}

func TestAPIErrorBacksOff(t *testing.T) {
	m := &scriptedModel{replies: []reply{{err: errors.New("503")}, {text: validReceipt}}}
	s := NewStructurer(m, quietLogger(), WithBackoff(50*time.Millisecond))

	start := time.Now()
	_, err := s.Structure(context.Background(), Request{Text: "STORE A"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	prompts := m.calls()
	require.Len(t, prompts, 2)
	assert.Equal(t, prompts[0], prompts[1])
}

func TestAPIErrorExhausts(t *testing.T) {
	boom := errors.New("quota exceeded")
	m := &scriptedModel{replies: []reply{{err: boom}}}
	s := NewStructurer(m, quietLogger(), WithBackoff(time.Millisecond))

	_, err := s.Structure(context.Background(), Request{Text: "x"})
	var sf *StructuringFailedError
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, ReasonAPI, sf.Reason)
	assert.ErrorIs(t, err, boom)
}

func TestEmptyReplyTakesCorrectingPath(t *testing.T) {
	m := &scriptedModel{replies: []reply{{text: ""}, {text: validReceipt}}}
	s := NewStructurer(m, quietLogger(), WithBackoff(time.Hour))

	_, err := s.Structure(context.Background(), Request{Text: "STORE A"})
	require.NoError(t, err)
	prompts := m.calls()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "Previous output was invalid JSON")
}

func TestPermanentAPIErrorStopsRetrying(t *testing.T) {
	denied := &APIError{Provider: "scripted", Status: 401, Body: "invalid api key"}
	m := &scriptedModel{replies: []reply{{err: denied}, {text: validReceipt}}}
	s := NewStructurer(m, quietLogger(), WithBackoff(time.Hour))

	_, err := s.Structure(context.Background(), Request{Text: "x"})
	var sf *StructuringFailedError
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, ReasonAPI, sf.Reason)
	assert.Equal(t, 1, sf.Attempts)
	assert.ErrorIs(t, err, denied)
	assert.Len(t, m.calls(), 1)
}

func TestRetryableAPIErrorRetries(t *testing.T) {
	busy := &APIError{Provider: "scripted", Status: 503, Body: "overloaded"}
	m := &scriptedModel{replies: []reply{{err: busy}, {text: validReceipt}}}
	s := NewStructurer(m, quietLogger(), WithBackoff(time.Millisecond))

	_, err := s.Structure(context.Background(), Request{Text: "x"})
	require.NoError(t, err)
	assert.Len(t, m.calls(), 2)
}

func TestParentCancellationAborts(t *testing.T) {
	m := &scriptedModel{replies: []reply{{block: true}}}
	s := NewStructurer(m, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Structure(ctx, Request{Text: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var sf *StructuringFailedError
	assert.False(t, errors.As(err, &sf))
	assert.Len(t, m.calls(), 1)
}

func TestStructureOnPool(t *testing.T) {
	pool := async.NewPool("model", quietLogger(), async.WithWorkers(2))
	defer pool.Shutdown(context.Background())

	m := &scriptedModel{replies: []reply{{text: validReceipt}}}
	s := NewStructurer(m, quietLogger(), WithPool(pool))
	_, err := s.Structure(context.Background(), Request{Text: "x"})
	require.NoError(t, err)
}

func TestReceiptPromptIncludesHints(t *testing.T) {
	learned := learn.Mappings{{Name: "trader joe's milk", Category: "Dairy"}}
	p := BuildPrompt(State{Phase: PhaseAttempting, Attempt: 1}, Request{Text: "RAW", Type: entity.DocumentReceipt, Learned: learned})

	assert.Contains(t, p, `"trader joe's milk" → Dairy`)
	assert.Contains(t, p, "Prefer these mappings.")
	assert.Contains(t, p, "Dairy, Bakery, Produce")
	assert.Contains(t, p, "RAW TEXT:\nRAW")
}

func TestPromptHintsCapped(t *testing.T) {
	var learned learn.Mappings
	for i := 0; i < 25; i++ {
		learned = append(learned, learn.Mapping{Name: string(rune('a' + i)), Category: "Other"})
	}
	p := ReceiptPrompt("x", learned)
	assert.Contains(t, p, `"t" → Other`)
	assert.NotContains(t, p, `"u" → Other`)
}

func TestStatementPromptRules(t *testing.T) {
	p := BuildPrompt(State{Phase: PhaseAttempting, Attempt: 1}, Request{Text: "RAW", Type: entity.DocumentBankStatement})
	assert.Contains(t, p, "Debits/purchases are NEGATIVE amounts")
	assert.Contains(t, p, "is_income=true")
	assert.Contains(t, p, "Groceries, Dining, Transport")
}

func TestCorrectionPromptTruncatesOutput(t *testing.T) {
	long := make([]byte, 1500)
	for i := range long {
		long[i] = 'x'
	}
	p := CorrectionPrompt(entity.DocumentReceipt, errors.New("bad"), string(long))
	assert.Contains(t, p, "Incorrect Output: "+string(long[:1000])+"\n\n")
}

func TestCorrectionPromptKeepsRunesWhole(t *testing.T) {
	// 999 ASCII bytes followed by a 3-byte rune straddling the cap.
	output := strings.Repeat("x", 999) + "€" + strings.Repeat("y", 10)
	p := CorrectionPrompt(entity.DocumentReceipt, errors.New("bad"), output)

	assert.True(t, utf8.ValidString(p))
	assert.Contains(t, p, "Incorrect Output: "+strings.Repeat("x", 999)+"\n\n")
}

package message

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"wadigest/pkg/config"
)

var ErrProcessingFailed = errors.New("message processing failed")

const (
	unknownSender = "Unknown"
	// Timestamps above this are treated as epoch milliseconds.
	millisThreshold = 1_000_000_000_000
)

var senderKeys = []string{"senderName", "senderContactName", "pushName"}

// Canonical is the normalized record handed to summarization.
type Canonical struct {
	MessageID  string `json:"messageId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	Kind       Kind   `json:"kind"`
	Timestamp  int64  `json:"timestamp,omitempty"`
	ChatID     string `json:"chatId,omitempty"`
	Type       string `json:"type"`
	ReplyTo    string `json:"replyTo,omitempty"`
}

// Time returns the message time in UTC, or the zero time when the record
// carried no timestamp.
func (c Canonical) Time() time.Time {
	if c.Timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(c.Timestamp, 0).UTC()
}

// Result is the output of one Normalize call.
type Result struct {
	Messages           []Canonical    `json:"messages"`
	Processed          int            `json:"processed"`
	Accepted           int            `json:"accepted"`
	Rejected           int            `json:"rejected"`
	ExtractionFailures int            `json:"extractionFailures"`
	RejectedByReason   map[Reason]int `json:"rejectedByReason,omitempty"`
	RejectedByKind     map[Kind]int   `json:"rejectedByKind,omitempty"`
}

// Options configures a Normalizer. Nil slices select the defaults.
type Options struct {
	TargetLanguage   string
	DebugMode        bool
	ReducedFiltering bool
	SupportedKinds   []Kind
	CommandPrefixes  []string
	CommandWords     []string
}

type Option func(*Normalizer)

// WithObserver attaches a diagnostic side channel.
func WithObserver(observer Observer) Option {
	return func(n *Normalizer) {
		n.observer = observer
	}
}

// WithClock overrides the clock used for synthesized message ids.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// Normalizer turns raw platform records into canonical messages. It holds
// no per-batch state and is safe for concurrent use.
type Normalizer struct {
	targetLanguage string
	policy         *Policy
	debug          atomic.Bool
	observer       Observer
	now            func() time.Time
}

func New(opts Options, options ...Option) *Normalizer {
	n := &Normalizer{
		targetLanguage: opts.TargetLanguage,
		policy:         NewPolicy(opts.SupportedKinds, opts.CommandPrefixes, opts.CommandWords, opts.ReducedFiltering),
		now:            time.Now,
	}
	n.debug.Store(opts.DebugMode)
	for _, option := range options {
		option(n)
	}
	return n
}

// NewFromConfig builds a Normalizer from the normalizer config section.
func NewFromConfig(cfg config.NormalizerConfig, options ...Option) (*Normalizer, error) {
	var supported []Kind
	if cfg.SupportedKinds != nil {
		kinds, err := ParseKinds(cfg.SupportedKinds)
		if err != nil {
			return nil, fmt.Errorf("normalizer.supported_kinds: %w", err)
		}
		supported = kinds
	}

	return New(Options{
		TargetLanguage:   cfg.TargetLanguage,
		DebugMode:        cfg.DebugMode,
		ReducedFiltering: cfg.ReducedFiltering,
		SupportedKinds:   supported,
		CommandPrefixes:  cfg.CommandPrefixes,
		CommandWords:     cfg.CommandWords,
	}, options...), nil
}

// TargetLanguage is passed through for the summarizer; it does not affect
// normalization.
func (n *Normalizer) TargetLanguage() string { return n.targetLanguage }

func (n *Normalizer) Policy() *Policy { return n.policy }

// SetDebugMode toggles diagnostics. A batch already in flight keeps the
// setting it started with.
func (n *Normalizer) SetDebugMode(enabled bool) { n.debug.Store(enabled) }

func (n *Normalizer) DebugMode() bool { return n.debug.Load() }

type outcome struct {
	message  Canonical
	kind     Kind
	decision Decision
	keys     []string
	err      error
	salvaged bool
}

// batchState tracks synthesized ids so one batch never repeats one.
type batchState struct {
	debug  bool
	issued map[string]int
}

// Normalize processes every record of batch in order. A failing record is
// rejected or salvaged on its own and never aborts the batch.
func (n *Normalizer) Normalize(batch []any) Result {
	state := &batchState{debug: n.debug.Load(), issued: make(map[string]int)}
	result := Result{
		Messages:         make([]Canonical, 0, len(batch)),
		RejectedByReason: make(map[Reason]int),
		RejectedByKind:   make(map[Kind]int),
	}

	for i, raw := range batch {
		out := n.process(raw, state)
		result.Processed++
		n.emit(Event{Type: EventDetected, Index: i, MessageID: out.message.MessageID, Kind: out.kind, Keys: out.keys, Debug: state.debug})

		if out.salvaged {
			result.ExtractionFailures++
			n.emit(Event{Type: EventExtractionFailed, Index: i, MessageID: out.message.MessageID, Kind: out.kind, Keys: out.keys, Err: out.err, Debug: state.debug})
		}

		if !out.decision.Kept {
			result.Rejected++
			result.RejectedByReason[out.decision.Reason]++
			result.RejectedByKind[out.kind]++
			n.emit(Event{Type: EventRejected, Index: i, MessageID: out.message.MessageID, Kind: out.kind, Decision: out.decision, Keys: out.keys, Err: out.err, Debug: state.debug})
			continue
		}

		result.Accepted++
		result.Messages = append(result.Messages, out.message)
		n.emit(Event{Type: EventAccepted, Index: i, MessageID: out.message.MessageID, Kind: out.kind, Decision: out.decision, Debug: state.debug})
	}

	summary := result
	n.emit(Event{Type: EventBatchCompleted, Result: &summary, Debug: state.debug})
	return result
}

func (n *Normalizer) process(raw any, state *batchState) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out.decision = reject(ReasonProcessingFailure)
			out.err = fmt.Errorf("%w: %v", ErrProcessingFailed, r)
			out.salvaged = false
		}
	}()

	view, err := NewView(raw)
	if err != nil {
		return outcome{kind: KindUnknown, decision: reject(ReasonNotAMessageObject), err: err}
	}

	if state.debug {
		out.keys = view.Keys()
	}
	out.kind = Detect(view)
	out.message = n.assemble(view, out.kind, state)

	if d := n.policy.CheckKind(view, out.kind); !d.Kept {
		out.decision = d
		return out
	}

	extracted, err := extract(view, out.kind)
	if err != nil {
		out.err = err
		out.salvaged = true
		extracted = extraction{Text: "[MESSAGE: " + out.message.MessageID + "]"}
	}
	out.message.Text = extracted.Text
	out.message.ReplyTo = extracted.ReplyTo
	out.decision = n.policy.Decide(view, out.kind, out.message.Text)
	return out
}

func (n *Normalizer) assemble(v *View, kind Kind, state *batchState) Canonical {
	msg := Canonical{
		MessageID:  n.messageID(v, state),
		SenderName: unknownSender,
		Kind:       kind,
		Type:       kind.TypeName(),
	}
	for _, key := range senderKeys {
		if name, ok := v.Sender(key); ok {
			msg.SenderName = name
			break
		}
	}
	if chatID, ok := v.Sender("chatId"); ok {
		msg.ChatID = chatID
	}
	if raw, ok := v.String(KindUnknown, "type"); ok {
		msg.Type = raw
	}
	if ts, ok := v.Int("timestamp"); ok && ts > 0 {
		if ts > millisThreshold {
			ts /= 1000
		}
		msg.Timestamp = ts
	}
	return msg
}

func (n *Normalizer) messageID(v *View, state *batchState) string {
	if id, ok := v.String(KindUnknown, "idMessage"); ok {
		return id
	}
	id := "id_" + strconv.FormatInt(n.now().UnixMilli(), 10)
	seen := state.issued[id]
	state.issued[id] = seen + 1
	if seen > 0 {
		id += "_" + strconv.Itoa(seen)
	}
	return id
}

func (n *Normalizer) emit(event Event) {
	if n.observer == nil {
		return
	}
	if event.Type == EventDetected && !event.Debug {
		return
	}
	n.observer.Observe(event)
}

package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/garyjia/backoffice-wizard/internal/application/port"
)

// Draft is the persisted, resumable snapshot of an unsubmitted record
type Draft struct {
	FormData    json.RawMessage `json:"formData"`
	CurrentStep int             `json:"currentStep"`
	LastSaved   time.Time       `json:"lastSaved"`
}

// Index returns the 0-based section index of the draft
func (d Draft) Index() int {
	return d.CurrentStep - 1
}

// Drafts saves and restores one flow's draft in an owner-scoped store. Writes
// are ordered by generation: a snapshot stamped before a newer write or a
// clear is dropped instead of overwriting it.
type Drafts struct {
	store    port.DraftStore
	key      string
	template []byte
	sections int
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	issued  uint64
	written uint64
}

// NewDrafts creates draft persistence for flow on store
func NewDrafts(store port.DraftStore, flow *Flow, logger *zap.Logger) *Drafts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Drafts{
		store:    store,
		key:      flow.DraftKey,
		template: flow.Template,
		sections: flow.Registry.Count(),
		logger:   logger.With(zap.String("draft_key", flow.DraftKey)),
		now:      time.Now,
	}
}

// Stamp issues the generation for a snapshot about to be taken
func (d *Drafts) Stamp() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.issued++
	return d.issued
}

// Save stamps and writes record at currentIndex
func (d *Drafts) Save(ctx context.Context, record []byte, currentIndex int) (Draft, error) {
	return d.Write(ctx, d.Stamp(), record, currentIndex)
}

// Write persists a snapshot taken under generation gen. A stale generation
// is skipped and reported as written, since a newer state already won.
func (d *Drafts) Write(ctx context.Context, gen uint64, record []byte, currentIndex int) (Draft, error) {
	draft := Draft{
		FormData:    json.RawMessage(pretty.Ugly(record)),
		CurrentStep: currentIndex + 1,
		LastSaved:   d.now().UTC().Truncate(time.Second),
	}

	value, err := json.Marshal(draft)
	if err != nil {
		return Draft{}, fmt.Errorf("failed to encode draft: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if gen <= d.written {
		d.logger.Debug("Skipping stale draft write", zap.Uint64("generation", gen), zap.Uint64("written", d.written))
		return draft, nil
	}

	if err := d.store.Set(ctx, d.key, value); err != nil {
		d.logger.Error("Failed to save draft", zap.Error(err))
		return Draft{}, fmt.Errorf("failed to save draft: %w", err)
	}
	d.written = gen

	d.logger.Debug("Draft saved", zap.Int("current_step", draft.CurrentStep))
	return draft, nil
}

// Load restores the stored draft, normalized against the flow template. It
// never fails: a missing, unreadable or corrupt draft yields false.
func (d *Drafts) Load(ctx context.Context) (Draft, bool) {
	raw, err := d.store.Get(ctx, d.key)
	if err != nil {
		if !errors.Is(err, port.ErrNotFound) {
			d.logger.Warn("Failed to read draft", zap.Error(err))
		}
		return Draft{}, false
	}

	if !gjson.ValidBytes(raw) {
		d.logger.Warn("Discarding corrupt draft", zap.Int("bytes", len(raw)))
		return Draft{}, false
	}

	doc := gjson.ParseBytes(raw)
	formData := doc.Get("formData")
	if !formData.IsObject() {
		d.logger.Warn("Discarding draft without form data")
		return Draft{}, false
	}

	normalized, err := Normalize(d.template, []byte(formData.Raw))
	if err != nil {
		d.logger.Warn("Failed to normalize draft", zap.Error(err))
		return Draft{}, false
	}

	step := int(doc.Get("currentStep").Int())
	if step < 1 {
		step = 1
	}
	if step > d.sections {
		step = d.sections
	}

	var saved time.Time
	if ts := doc.Get("lastSaved"); ts.Type == gjson.String {
		saved, _ = time.Parse(time.RFC3339, ts.Str)
	}

	return Draft{
		FormData:    normalized,
		CurrentStep: step,
		LastSaved:   saved,
	}, true
}

// Clear removes the draft and invalidates every snapshot stamped before it
func (d *Drafts) Clear(ctx context.Context) error {
	gen := d.Stamp()

	d.mu.Lock()
	defer d.mu.Unlock()

	if gen > d.written {
		d.written = gen
	}
	if err := d.store.Delete(ctx, d.key); err != nil && !errors.Is(err, port.ErrNotFound) {
		d.logger.Error("Failed to clear draft", zap.Error(err))
		return fmt.Errorf("failed to clear draft: %w", err)
	}
	return nil
}

// Normalize fills every key of template that doc is missing, holds as null
// or holds with a different JSON type. Nested objects are normalized
// recursively and keys unknown to the template are kept.
func Normalize(template, doc []byte) ([]byte, error) {
	out := make([]byte, len(doc))
	copy(out, doc)

	var err error
	gjson.ParseBytes(template).ForEach(func(key, want gjson.Result) bool {
		path := escapeKey(key.String())
		have := gjson.GetBytes(out, path)

		switch {
		case want.IsObject() && have.IsObject():
			var nested []byte
			if nested, err = Normalize([]byte(want.Raw), []byte(have.Raw)); err == nil {
				out, err = sjson.SetRawBytes(out, path, nested)
			}
		case sameKind(want, have):
			return true
		case want.Type == gjson.Null:
			return true
		default:
			out, err = sjson.SetRawBytes(out, path, []byte(want.Raw))
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sameKind(want, have gjson.Result) bool {
	if !have.Exists() || have.Type == gjson.Null {
		return false
	}
	switch {
	case want.IsArray():
		return have.IsArray()
	case want.IsObject():
		return have.IsObject()
	case want.Type == gjson.True || want.Type == gjson.False:
		return have.Type == gjson.True || have.Type == gjson.False
	case want.Type == gjson.JSON:
		return have.Type == gjson.JSON
	}
	return want.Type == have.Type
}

var keyEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)

func escapeKey(k string) string {
	return keyEscaper.Replace(k)
}

package wizard

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
	"github.com/garyjia/backoffice-wizard/pkg/utils"
)

// Intent is a command applied to a FormState by Flow.Reduce
type Intent interface {
	intent()
}

// SetField writes Value at Path
type SetField struct {
	Path  string
	Value interface{}
}

// Next advances past the current section when it validates
type Next struct{}

// Previous moves back one section
type Previous struct{}

// JumpTo moves directly to a section index
type JumpTo struct {
	Index int
}

// Submit validates all required sections ahead of delivery
type Submit struct{}

// MarkSubmitted records a successful delivery. No intent changes the state afterwards.
type MarkSubmitted struct{}

// SaveDraft requests an explicit draft save
type SaveDraft struct{}

// Discard resets the record and requests the draft be removed
type Discard struct{}

// AddDocuments offers files to the flow's document list
type AddDocuments struct {
	Files []entity.FileDescriptor
}

// UploadProgress reports transfer progress for the document at Index
type UploadProgress struct {
	Index    int
	Progress int
	Failed   bool
}

// RemoveDocument drops the document at Index
type RemoveDocument struct {
	Index int
}

func (SetField) intent()       {}
func (Next) intent()           {}
func (Previous) intent()       {}
func (JumpTo) intent()         {}
func (Submit) intent()         {}
func (MarkSubmitted) intent()  {}
func (SaveDraft) intent()      {}
func (Discard) intent()        {}
func (AddDocuments) intent()   {}
func (UploadProgress) intent() {}
func (RemoveDocument) intent() {}

// Effect is work the caller performs after a reduction
type Effect string

const (
	EffectAutosave   Effect = "autosave"
	EffectSaveDraft  Effect = "save_draft"
	EffectSubmit     Effect = "submit"
	EffectClearDraft Effect = "clear_draft"
)

// Outcome describes what a reduction did
type Outcome struct {
	OK      bool
	Errors  ErrorMap
	Cleared []string
	Effects []Effect
	Err     error
}

// Has reports whether e was requested
func (o Outcome) Has(e Effect) bool {
	for _, x := range o.Effects {
		if x == e {
			return true
		}
	}
	return false
}

// Reduce applies intent to state and returns the resulting state. The input
// state is never modified; on error the returned state equals the input.
func (f *Flow) Reduce(state FormState, intent Intent) (FormState, Outcome) {
	if state.Submitted {
		if _, ok := intent.(MarkSubmitted); ok {
			return state, Outcome{OK: true}
		}
		return state, Outcome{Err: ErrFlowClosed}
	}

	next := state.Clone()
	var out Outcome

	switch in := intent.(type) {
	case SetField:
		if f.managesPath(in.Path) {
			return state, Outcome{Err: fmt.Errorf("%w: %s", ErrManagedPath, in.Path)}
		}
		cleared, err := f.setField(&next, in.Path, sanitizeInput(in.Value))
		if err != nil {
			return state, Outcome{Err: err}
		}
		out = Outcome{OK: true, Cleared: cleared}

	case Next:
		errs, ok := f.nav.Next(&next)
		out = Outcome{OK: ok, Errors: errs}
		if ok {
			out.Effects = []Effect{EffectAutosave}
		}

	case Previous:
		out = Outcome{OK: f.nav.Previous(&next)}

	case JumpTo:
		out = Outcome{OK: f.nav.JumpTo(&next, in.Index)}

	case Submit:
		errs, ok := f.nav.Submit(&next)
		out = Outcome{OK: ok, Errors: errs}
		if ok {
			out.Effects = []Effect{EffectSubmit}
		} else {
			out.Err = ErrValidationFailed
		}

	case MarkSubmitted:
		next.Submitted = true
		next.Errors = ErrorMap{}
		out = Outcome{OK: true}

	case SaveDraft:
		out = Outcome{OK: true, Effects: []Effect{EffectSaveDraft}}

	case Discard:
		next = f.NewState()
		out = Outcome{OK: true, Effects: []Effect{EffectClearDraft}}

	case AddDocuments:
		existing := readDocuments(next.Store, f.DocumentsPath)
		accepted, err := f.Uploads.Accept(existing, in.Files)
		if err != nil {
			return state, Outcome{Err: err}
		}
		if _, err := f.setField(&next, f.DocumentsPath, append(existing, accepted...)); err != nil {
			return state, Outcome{Err: err}
		}
		out = Outcome{OK: true}

	case UploadProgress:
		docs := readDocuments(next.Store, f.DocumentsPath)
		if in.Index < 0 || in.Index >= len(docs) {
			return state, Outcome{Err: fmt.Errorf("%w: %d", ErrDocumentIndex, in.Index)}
		}
		applyProgress(&docs[in.Index], in.Progress, in.Failed)
		if _, err := f.setField(&next, f.DocumentsPath, docs); err != nil {
			return state, Outcome{Err: err}
		}
		out = Outcome{OK: true}

	case RemoveDocument:
		docs := readDocuments(next.Store, f.DocumentsPath)
		if in.Index < 0 || in.Index >= len(docs) {
			return state, Outcome{Err: fmt.Errorf("%w: %d", ErrDocumentIndex, in.Index)}
		}
		docs = append(docs[:in.Index], docs[in.Index+1:]...)
		if _, err := f.setField(&next, f.DocumentsPath, docs); err != nil {
			return state, Outcome{Err: err}
		}
		out = Outcome{OK: true}

	default:
		return state, Outcome{Err: fmt.Errorf("%w: %T", ErrUnknownIntent, intent)}
	}

	return next, out
}

// sanitizeInput strips control characters from a top-level string value
func sanitizeInput(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return utils.SanitizeString(v)
	case json.RawMessage:
		r := gjson.ParseBytes(v)
		if r.Type != gjson.String {
			return value
		}
		if clean := utils.SanitizeString(r.Str); clean != r.Str {
			return clean
		}
	}
	return value
}

// managesPath reports whether a write to path would touch the document list
func (f *Flow) managesPath(path string) bool {
	docs := f.DocumentsPath
	if docs == "" {
		return false
	}
	return path == docs || strings.HasPrefix(path, docs+".") || strings.HasPrefix(docs, path+".")
}

// setField writes the value, drops errors for the path and runs hooks
func (f *Flow) setField(s *FormState, path string, value interface{}) ([]string, error) {
	if err := s.Store.Set(path, value); err != nil {
		return nil, err
	}
	clearErrors(s.Errors, path)

	var cleared []string
	for _, h := range f.Hooks {
		if !h.matches(path) {
			continue
		}
		paths, err := h.Apply(s.Store)
		if err != nil {
			return nil, fmt.Errorf("hook for %s failed: %w", h.Path, err)
		}
		for _, p := range paths {
			clearErrors(s.Errors, p)
		}
		cleared = append(cleared, paths...)
	}
	return cleared, nil
}

// clearErrors drops the error for path and for any field nested under it
func clearErrors(errs ErrorMap, path string) {
	delete(errs, path)
	prefix := path + "."
	for field := range errs {
		if strings.HasPrefix(field, prefix) {
			delete(errs, field)
		}
	}
}

func applyProgress(d *entity.Document, progress int, failed bool) {
	if failed {
		d.UploadState = entity.UploadStateFailed
		return
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	d.Progress = progress
	if progress == 100 {
		d.UploadState = entity.UploadStateUploaded
	} else {
		d.UploadState = entity.UploadStateUploading
	}
}

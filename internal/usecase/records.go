package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	jiraapi "timecard/internal/adapter/jira"
	"timecard/internal/domain"
	"timecard/internal/ports"
)

// RecordInput is the payload for creating or replacing a time record. Each
// level is given by name (found or created) or by id (must already exist).
// A name wins over an id.
type RecordInput struct {
	Domain, Category, Title       string
	DomainID, CategoryID, TitleID *int64

	TimeIn       *time.Time
	TimeOut      *time.Time
	ExternalLink *string
	Notes        *string
	JiraIssueKey *string
}

// RecordsUseCase manages time records and their labels.
type RecordsUseCase struct {
	Log        *slog.Logger
	Attributes ports.AttributeStore
	Records    ports.RecordStore
	Now        func() time.Time
}

func (uc *RecordsUseCase) now() time.Time {
	if uc.Now != nil {
		return uc.Now().UTC().Truncate(time.Second)
	}
	return time.Now().UTC().Truncate(time.Second)
}

// Create stores a new record owned by userID. TimeIn defaults to now.
func (uc *RecordsUseCase) Create(ctx context.Context, userID int64, in RecordInput) (domain.TimeRecord, error) {
	r := domain.TimeRecord{UserID: userID, TimeIn: uc.now()}
	if err := uc.apply(ctx, &r, in); err != nil {
		return domain.TimeRecord{}, err
	}
	if err := uc.Records.CreateRecord(ctx, &r); err != nil {
		return domain.TimeRecord{}, err
	}
	uc.Log.Info("time record created",
		slog.Int64("user_id", userID), slog.Int64("id", r.ID), slog.Bool("open", r.Open()))
	return r, nil
}

// List returns the user's records whose timein falls in [from, to).
func (uc *RecordsUseCase) List(ctx context.Context, userID int64, from, to *time.Time) ([]domain.TimeRecord, error) {
	return uc.Records.ListRecords(ctx, userID, from, to)
}

func (uc *RecordsUseCase) Get(ctx context.Context, userID, id int64) (domain.TimeRecord, error) {
	r, err := uc.Records.RecordByID(ctx, userID, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.TimeRecord{}, domain.Missing("Time record")
	}
	return r, err
}

// Update replaces every user-editable field of a record. An omitted timein
// keeps the stored value; an omitted timeout reopens the record.
func (uc *RecordsUseCase) Update(ctx context.Context, userID, id int64, in RecordInput) (domain.TimeRecord, error) {
	r, err := uc.Get(ctx, userID, id)
	if err != nil {
		return domain.TimeRecord{}, err
	}
	r.TimeOut, r.ExternalLink, r.Notes, r.JiraIssueKey = nil, nil, nil, nil
	if err := uc.apply(ctx, &r, in); err != nil {
		return domain.TimeRecord{}, err
	}
	if err := uc.Records.UpdateRecord(ctx, r); err != nil {
		return domain.TimeRecord{}, err
	}
	return r, nil
}

// Stop clocks out an open record at the current time.
func (uc *RecordsUseCase) Stop(ctx context.Context, userID, id int64) (domain.TimeRecord, error) {
	r, err := uc.Get(ctx, userID, id)
	if err != nil {
		return domain.TimeRecord{}, err
	}
	if !r.Open() {
		return domain.TimeRecord{}, domain.ErrConflict
	}
	out := uc.now()
	if !out.After(r.TimeIn) {
		out = r.TimeIn.Add(time.Second)
	}
	r.TimeOut = &out
	if err := uc.Records.UpdateRecord(ctx, r); err != nil {
		return domain.TimeRecord{}, err
	}
	uc.Log.Info("time record stopped", slog.Int64("id", r.ID), slog.Duration("duration", r.Duration(out)))
	return r, nil
}

func (uc *RecordsUseCase) Delete(ctx context.Context, userID, id int64) error {
	err := uc.Records.DeleteRecord(ctx, userID, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Missing("Time record")
	}
	return err
}

// ListAttributes lists every label the user owns.
func (uc *RecordsUseCase) ListAttributes(ctx context.Context, userID int64) ([]domain.RecordAttribute, error) {
	return uc.Attributes.ListAttributes(ctx, userID)
}

// UpdateAttribute renames or recolors a label. Nil arguments are left as is.
func (uc *RecordsUseCase) UpdateAttribute(ctx context.Context, userID, id int64, name, color *string) (domain.RecordAttribute, error) {
	a, err := uc.Attributes.AttributeByID(ctx, userID, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.RecordAttribute{}, domain.Missing("Record attribute")
	}
	if err != nil {
		return domain.RecordAttribute{}, err
	}
	if name != nil {
		if err := domain.ValidateAttributeName("name", *name); err != nil {
			return domain.RecordAttribute{}, err
		}
		a.Name = *name
	}
	if color != nil {
		if err := domain.ValidateColor(color); err != nil {
			return domain.RecordAttribute{}, err
		}
		a.Color = color
		if *color == "" {
			a.Color = nil
		}
	}
	if err := uc.Attributes.UpdateAttribute(ctx, a); err != nil {
		return domain.RecordAttribute{}, err
	}
	return a, nil
}

// apply resolves the label chain and copies in onto r, then validates.
func (uc *RecordsUseCase) apply(ctx context.Context, r *domain.TimeRecord, in RecordInput) error {
	d, c, t, err := uc.resolveChain(ctx, r.UserID, in)
	if err != nil {
		return err
	}
	r.DomainID, r.CategoryID, r.TitleID = d, c, t

	if in.TimeIn != nil {
		r.TimeIn = in.TimeIn.UTC().Truncate(time.Second)
	}
	if in.TimeOut != nil {
		out := in.TimeOut.UTC().Truncate(time.Second)
		r.TimeOut = &out
	}
	r.ExternalLink = emptyToNil(in.ExternalLink)
	r.Notes = emptyToNil(in.Notes)
	r.JiraIssueKey = emptyToNil(in.JiraIssueKey)
	if r.JiraIssueKey != nil {
		if err := jiraapi.ValidateIssueKey(*r.JiraIssueKey); err != nil {
			return err
		}
	}
	return r.Validate()
}

// resolveChain returns the domain, category and title ids for in. Names are
// matched exactly within the user's labels and parent, and created when no
// match exists, so the same name under the same parent is stored once.
func (uc *RecordsUseCase) resolveChain(ctx context.Context, userID int64, in RecordInput) (int64, int64, int64, error) {
	d, err := uc.resolveLevel(ctx, userID, domain.LevelDomain, "domain", in.Domain, in.DomainID, nil)
	if err != nil {
		return 0, 0, 0, err
	}
	c, err := uc.resolveLevel(ctx, userID, domain.LevelCategory, "category", in.Category, in.CategoryID, &d)
	if err != nil {
		return 0, 0, 0, err
	}
	t, err := uc.resolveLevel(ctx, userID, domain.LevelTitle, "title", in.Title, in.TitleID, &c)
	if err != nil {
		return 0, 0, 0, err
	}
	return d, c, t, nil
}

func (uc *RecordsUseCase) resolveLevel(ctx context.Context, userID int64, level domain.Level, field, name string, id, parentID *int64) (int64, error) {
	if name != "" {
		if err := domain.ValidateAttributeName(field, name); err != nil {
			return 0, err
		}
		a, err := uc.Attributes.FindAttribute(ctx, userID, level, name, parentID)
		if err == nil {
			return a.ID, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return 0, err
		}
		a = domain.RecordAttribute{Name: name, ParentID: parentID, UserID: userID, Level: level}
		if err := uc.Attributes.CreateAttribute(ctx, &a); err != nil {
			return 0, err
		}
		return a.ID, nil
	}
	if id == nil {
		return 0, domain.Invalid(field, "is required")
	}
	a, err := uc.Attributes.AttributeByID(ctx, userID, *id)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, domain.Invalid(field+"_id", "does not exist")
	}
	if err != nil {
		return 0, err
	}
	if a.Level != level {
		return 0, domain.Invalid(field+"_id", "is not a "+level.String())
	}
	if !sameParent(a.ParentID, parentID) {
		return 0, domain.Invalid(field+"_id", "does not belong to the given parent")
	}
	return a.ID, nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

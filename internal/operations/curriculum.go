package operations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"schoolhub/internal/model"
)

const (
	defaultMaxScore = 100
	// Untagged items are keyed under this prefix in the IDMap, so clients
	// may not use it for their own temp ids.
	syntheticTempPrefix = "new-"
)

// ChapterInput is one chapter of a nested course payload. Exactly one of ID
// (existing chapter) or TempID (client-side placeholder) identifies it.
type ChapterInput struct {
	ID          string `json:"id,omitempty"`
	TempID      string `json:"tempId,omitempty"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Position    *int   `json:"position,omitempty" validate:"omitempty,min=0"`
}

// AssignmentInput is one assignment of a nested course payload. ChapterID
// may name an existing chapter or the TempID of a chapter in the same
// payload; empty means no chapter.
type AssignmentInput struct {
	ID          string     `json:"id,omitempty"`
	TempID      string     `json:"tempId,omitempty"`
	ChapterID   string     `json:"chapterId,omitempty"`
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	MaxScore    *int       `json:"maxScore,omitempty" validate:"omitempty,min=1,max=1000"`
	Position    *int       `json:"position,omitempty" validate:"omitempty,min=0"`
}

type IDMap struct {
	Chapters    map[string]string `json:"chapters"`
	Assignments map[string]string `json:"assignments"`
}

// Existing is the curriculum currently stored for a course.
type Existing struct {
	ChapterIDs    []string
	AssignmentIDs []string
}

// CurriculumPlan is the full set of writes that turns the stored curriculum
// into the submitted one.
type CurriculumPlan struct {
	CourseID          string
	InsertChapters    []model.Chapter
	UpdateChapters    []model.Chapter
	DeleteChapters    []string
	InsertAssignments []model.Assignment
	UpdateAssignments []model.Assignment
	DeleteAssignments []string
	IDMap             IDMap
}

// PlanCurriculum validates a nested payload against the stored curriculum
// and resolves temp ids to new ids. It performs no I/O; nothing should be
// written when it returns an error.
func PlanCurriculum(courseID string, existing Existing, chapters []ChapterInput, assignments []AssignmentInput, now time.Time, newID func() string) (CurriculumPlan, error) {
	plan := CurriculumPlan{
		CourseID: courseID,
		IDMap: IDMap{
			Chapters:    map[string]string{},
			Assignments: map[string]string{},
		},
	}

	storedChapters := toSet(existing.ChapterIDs)
	keptChapters := map[string]bool{}
	for i, in := range chapters {
		chapter := model.Chapter{
			CourseID:    courseID,
			Title:       in.Title,
			Description: in.Description,
			Position:    positionOr(in.Position, i),
			UpdatedAt:   now,
		}
		if in.ID != "" {
			if !storedChapters[in.ID] {
				return CurriculumPlan{}, &Error{Code: ErrInvalidChapterID, Ref: in.ID}
			}
			if keptChapters[in.ID] {
				return CurriculumPlan{}, &Error{Code: ErrDuplicateID, Ref: in.ID}
			}
			keptChapters[in.ID] = true
			chapter.ID = in.ID
			plan.UpdateChapters = append(plan.UpdateChapters, chapter)
			continue
		}
		tempID, err := tempIDOr(in.TempID, i)
		if err != nil {
			return CurriculumPlan{}, err
		}
		if _, dup := plan.IDMap.Chapters[tempID]; dup {
			return CurriculumPlan{}, &Error{Code: ErrDuplicateTempID, Ref: tempID}
		}
		chapter.ID = newID()
		chapter.CreatedAt = now
		plan.IDMap.Chapters[tempID] = chapter.ID
		plan.InsertChapters = append(plan.InsertChapters, chapter)
	}
	for _, id := range existing.ChapterIDs {
		if !keptChapters[id] {
			plan.DeleteChapters = append(plan.DeleteChapters, id)
		}
	}

	storedAssignments := toSet(existing.AssignmentIDs)
	keptAssignments := map[string]bool{}
	for i, in := range assignments {
		chapterID, err := resolveChapter(in.ChapterID, keptChapters, plan.IDMap.Chapters)
		if err != nil {
			return CurriculumPlan{}, err
		}
		assignment := model.Assignment{
			CourseID:    courseID,
			ChapterID:   chapterID,
			Title:       in.Title,
			Description: in.Description,
			DueAt:       in.DueAt,
			MaxScore:    defaultMaxScore,
			Position:    positionOr(in.Position, i),
			UpdatedAt:   now,
		}
		if in.MaxScore != nil {
			assignment.MaxScore = *in.MaxScore
		}
		if in.ID != "" {
			if !storedAssignments[in.ID] {
				return CurriculumPlan{}, &Error{Code: ErrInvalidAssignmentID, Ref: in.ID}
			}
			if keptAssignments[in.ID] {
				return CurriculumPlan{}, &Error{Code: ErrDuplicateID, Ref: in.ID}
			}
			keptAssignments[in.ID] = true
			assignment.ID = in.ID
			plan.UpdateAssignments = append(plan.UpdateAssignments, assignment)
			continue
		}
		tempID, err := tempIDOr(in.TempID, i)
		if err != nil {
			return CurriculumPlan{}, err
		}
		if _, dup := plan.IDMap.Assignments[tempID]; dup {
			return CurriculumPlan{}, &Error{Code: ErrDuplicateTempID, Ref: tempID}
		}
		assignment.ID = newID()
		assignment.CreatedAt = now
		plan.IDMap.Assignments[tempID] = assignment.ID
		plan.InsertAssignments = append(plan.InsertAssignments, assignment)
	}
	for _, id := range existing.AssignmentIDs {
		if !keptAssignments[id] {
			plan.DeleteAssignments = append(plan.DeleteAssignments, id)
		}
	}
	return plan, nil
}

// resolveChapter prefers a kept existing chapter over a temp id of the same
// spelling.
func resolveChapter(ref string, kept map[string]bool, temp map[string]string) (*string, error) {
	if ref == "" {
		return nil, nil
	}
	if kept[ref] {
		id := ref
		return &id, nil
	}
	if id, ok := temp[ref]; ok {
		return &id, nil
	}
	return nil, &Error{Code: ErrUnknownChapterReference, Ref: ref}
}

func tempIDOr(tempID string, index int) (string, error) {
	if strings.HasPrefix(tempID, syntheticTempPrefix) {
		return "", &Error{Code: ErrReservedTempID, Ref: tempID}
	}
	if tempID != "" {
		return tempID, nil
	}
	return fmt.Sprintf("%s%d", syntheticTempPrefix, index), nil
}

func positionOr(p *int, index int) int {
	if p != nil {
		return *p
	}
	return index
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

type CurriculumStore interface {
	InsertChapter(ctx context.Context, c model.Chapter) error
	UpdateChapter(ctx context.Context, c model.Chapter) error
	DeleteSubmissionsForAssignments(ctx context.Context, assignmentIDs []string) (int64, error)
	DeleteAssignments(ctx context.Context, ids []string) (int64, error)
	DetachAssignmentsFromChapters(ctx context.Context, chapterIDs []string) (int64, error)
	DeleteChapters(ctx context.Context, ids []string) (int64, error)
	InsertAssignment(ctx context.Context, a model.Assignment) error
	UpdateAssignment(ctx context.Context, a model.Assignment) error
}

// ApplyCurriculum writes plan in an order that keeps every foreign key
// satisfied: chapters exist before assignments point at them, and rows are
// unlinked before their parents go. q is expected to be bound to a
// transaction.
func ApplyCurriculum(ctx context.Context, q CurriculumStore, plan CurriculumPlan) error {
	for _, c := range plan.InsertChapters {
		if err := q.InsertChapter(ctx, c); err != nil {
			return fmt.Errorf("insert chapter: %w", err)
		}
	}
	for _, c := range plan.UpdateChapters {
		if err := q.UpdateChapter(ctx, c); err != nil {
			return fmt.Errorf("update chapter %s: %w", c.ID, err)
		}
	}
	if _, err := q.DeleteSubmissionsForAssignments(ctx, plan.DeleteAssignments); err != nil {
		return fmt.Errorf("delete submissions: %w", err)
	}
	if _, err := q.DeleteAssignments(ctx, plan.DeleteAssignments); err != nil {
		return fmt.Errorf("delete assignments: %w", err)
	}
	if _, err := q.DetachAssignmentsFromChapters(ctx, plan.DeleteChapters); err != nil {
		return fmt.Errorf("detach assignments: %w", err)
	}
	if _, err := q.DeleteChapters(ctx, plan.DeleteChapters); err != nil {
		return fmt.Errorf("delete chapters: %w", err)
	}
	for _, a := range plan.InsertAssignments {
		if err := q.InsertAssignment(ctx, a); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
	}
	for _, a := range plan.UpdateAssignments {
		if err := q.UpdateAssignment(ctx, a); err != nil {
			return fmt.Errorf("update assignment %s: %w", a.ID, err)
		}
	}
	return nil
}

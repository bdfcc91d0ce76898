// Package dummydb is an in-memory store implementing the domain repositories.
// It enforces the same keys, foreign keys and delete rules as the postgres schema,
// and is used by tests and by the API when no database is configured.
package dummydb

import (
	"context"
	"strings"
	"sync"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/attachment"
	"github.com/tutoria/tutoria/core/chat"
	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/progress"
	"github.com/tutoria/tutoria/core/subject"
	"github.com/tutoria/tutoria/core/user"
)

type (
	// DB serializes every access with a single mutex; RunInTx holds it for the whole
	// transaction and restores a snapshot of the tables when fn fails.
	DB struct {
		mu sync.Mutex
		t  *tables
	}

	// tables keep rows in insertion order.
	tables struct {
		users       []user.User
		classrooms  []classroom.Classroom
		teachers    []classroom.Teacher
		students    []classroom.Student
		documents   []classroom.Document
		subjects    []subject.Subject
		preferences []subject.Preference
		chats       []chat.Session
		evaluations []chat.Evaluation
		automated   []chat.AutomatedEvaluation
		scores      []progress.Score
		attachments []attachment.Attachment
	}

	txKey struct {
		db *DB
	}
)

var _ core.Transactor = (*DB)(nil) // interface compliance check

func Open() (*DB, error) {
	return &DB{t: &tables{}}, nil
}

func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{db}) != nil {
		return fn(ctx)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := db.t.clone()
	defer func() {
		if p := recover(); p != nil {
			db.t = snapshot
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{db}, true)); err != nil {
		db.t = snapshot
	}
	return err
}

// lock acquires the store unless ctx already runs inside one of its transactions.
func (db *DB) lock(ctx context.Context) func() {
	if ctx.Value(txKey{db}) != nil {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

func (t *tables) clone() *tables {
	return &tables{
		users:       append([]user.User(nil), t.users...),
		classrooms:  append([]classroom.Classroom(nil), t.classrooms...),
		teachers:    append([]classroom.Teacher(nil), t.teachers...),
		students:    append([]classroom.Student(nil), t.students...),
		documents:   append([]classroom.Document(nil), t.documents...),
		subjects:    append([]subject.Subject(nil), t.subjects...),
		preferences: append([]subject.Preference(nil), t.preferences...),
		chats:       append([]chat.Session(nil), t.chats...),
		evaluations: append([]chat.Evaluation(nil), t.evaluations...),
		automated:   append([]chat.AutomatedEvaluation(nil), t.automated...),
		scores:      append([]progress.Score(nil), t.scores...),
		attachments: append([]attachment.Attachment(nil), t.attachments...),
	}
}

// lookups

func (t *tables) userIdx(id string) int {
	for i, u := range t.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func (t *tables) classroomIdx(id string) int {
	for i, c := range t.classrooms {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (t *tables) subjectIdx(id string) int {
	for i, s := range t.subjects {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (t *tables) chatIdx(id string) int {
	for i, s := range t.chats {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (t *tables) evaluationIdx(id string) int {
	for i, e := range t.evaluations {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (t *tables) teacherIdx(classroomID, teacherID string) int {
	for i, m := range t.teachers {
		if m.ClassroomID == classroomID && m.TeacherID == teacherID {
			return i
		}
	}
	return -1
}

func (t *tables) studentIdx(classroomID, studentID string) int {
	for i, m := range t.students {
		if m.ClassroomID == classroomID && m.StudentID == studentID {
			return i
		}
	}
	return -1
}

// checkSubjectRef enforces the foreign key of a catalog subject reference.
func (t *tables) checkSubjectRef(ref subject.Ref) error {
	if ref.IsCatalog() && t.subjectIdx(ref.SubjectID()) < 0 {
		return subject.ErrNotFound
	}
	return nil
}

// cascades

// deleteClassroom removes a classroom with everything that belongs to it.
func (t *tables) deleteClassroom(id string) error {
	var (
		teachers    []classroom.Teacher
		students    []classroom.Student
		documents   []classroom.Document
		preferences []subject.Preference
		scores      []progress.Score
		subjects    []subject.Subject
		dropped     = make(map[string]bool)
	)
	for _, m := range t.teachers {
		if m.ClassroomID != id {
			teachers = append(teachers, m)
		}
	}
	for _, m := range t.students {
		if m.ClassroomID != id {
			students = append(students, m)
		}
	}
	for _, d := range t.documents {
		if d.ClassroomID != id {
			documents = append(documents, d)
		}
	}
	for _, s := range t.subjects {
		if s.ClassroomID == id {
			dropped[s.ID] = true
		} else {
			subjects = append(subjects, s)
		}
	}
	for _, p := range t.preferences {
		if p.ClassroomID != id && !dropped[p.Subject.SubjectID()] {
			preferences = append(preferences, p)
		}
	}
	for _, s := range t.scores {
		if s.ClassroomID != id {
			scores = append(scores, s)
		}
	}

	chatIDs := make(map[string]bool)
	for _, s := range t.chats {
		if s.ClassroomID == id {
			chatIDs[s.ID] = true
		}
	}
	t.deleteChats(chatIDs)

	// rows of other classrooms may still point at the dropped subjects
	for _, s := range t.chats {
		if s.Subject.IsCatalog() && dropped[s.Subject.SubjectID()] {
			return subject.ErrSubjectInUse
		}
	}
	for _, s := range scores {
		if s.Subject.IsCatalog() && dropped[s.Subject.SubjectID()] {
			return subject.ErrSubjectInUse
		}
	}

	var classrooms []classroom.Classroom
	for _, c := range t.classrooms {
		if c.ID != id {
			classrooms = append(classrooms, c)
		}
	}
	t.classrooms = classrooms
	t.teachers = teachers
	t.students = students
	t.documents = documents
	t.subjects = subjects
	t.preferences = preferences
	t.scores = scores
	return nil
}

// deleteChats removes chats with their evaluations and attachments.
func (t *tables) deleteChats(ids map[string]bool) {
	if len(ids) == 0 {
		return
	}
	var (
		chats       []chat.Session
		evaluations []chat.Evaluation
		automated   []chat.AutomatedEvaluation
		attachments []attachment.Attachment
		evalIDs     = make(map[string]bool)
	)
	for _, s := range t.chats {
		if !ids[s.ID] {
			chats = append(chats, s)
		}
	}
	for _, e := range t.evaluations {
		if ids[e.ChatID] {
			evalIDs[e.ID] = true
		} else {
			evaluations = append(evaluations, e)
		}
	}
	for _, a := range t.automated {
		if !ids[a.ChatID] {
			automated = append(automated, a)
		}
	}
	for _, a := range t.attachments {
		if (a.Target.IsChat() && ids[a.Target.ID()]) || (a.Target.IsEval() && evalIDs[a.Target.ID()]) {
			continue
		}
		attachments = append(attachments, a)
	}
	t.chats = chats
	t.evaluations = evaluations
	t.automated = automated
	t.attachments = attachments
}

// helpers

func lowerEq(a, b string) bool {
	return strings.ToLower(a) == strings.ToLower(b)
}

// idSet indexes ids for membership tests.
func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

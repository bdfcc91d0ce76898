package subject_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/chat"
	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/progress"
	"github.com/tutoria/tutoria/core/subject"
	"github.com/tutoria/tutoria/core/user"
	"github.com/tutoria/tutoria/tests"
)

type fixture struct {
	*testutil.Services
	teacher, student user.User
	cls, other       classroom.Classroom
}

func setup(t *testing.T) fixture {
	svcs := testutil.NewServices(t)
	f := fixture{
		Services: svcs,
		teacher:  testutil.CreateUser(t, svcs.UserRepo, "Teacher", "teacher@example.com", user.RoleTeacher, ""),
		student:  testutil.CreateUser(t, svcs.UserRepo, "Student", "student@example.com", user.RoleStudent, ""),
	}
	f.cls = testutil.CreateClassroom(t, svcs.Classrooms, "Programming", f.teacher)
	f.other = testutil.CreateClassroom(t, svcs.Classrooms, "Databases", f.teacher)
	testutil.Enroll(t, svcs.Classrooms, f.cls, f.student)
	return f
}

func (f fixture) createSubject(t *testing.T, cls classroom.Classroom, name string) subject.Subject {
	sbj, err := f.Subjects.Create(context.Background(), subject.NewSubject{ClassroomID: cls.ID, Name: name, CreatedBy: f.teacher.ID})
	if err != nil {
		t.Fatalf("createSubject() failed: %v", err)
	}
	return sbj
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		name      string
		subjectID string
		freeText  string
		wantKind  subject.Kind
		wantErr   bool
	}{
		{name: "none", wantKind: subject.KindNone},
		{name: "blank values", subjectID: "  ", freeText: "\t", wantKind: subject.KindNone},
		{name: "catalog", subjectID: "b1c0", wantKind: subject.KindCatalog},
		{name: "free text", freeText: " recursion ", wantKind: subject.KindFreeText},
		{name: "both", subjectID: "b1c0", freeText: "recursion", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := subject.ParseRef(tt.subjectID, tt.freeText)
			if tt.wantErr {
				assert.True(t, core.IsValidation(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, ref.Kind())
		})
	}

	ref, _ := subject.ParseRef("", " recursion ")
	assert.Equal(t, "recursion", ref.Text())
	assert.Equal(t, subject.FreeText("Recursion").LowerText(), ref.LowerText())
}

func TestRef_JSON(t *testing.T) {
	tests := []struct {
		ref  subject.Ref
		want string
	}{
		{subject.Ref{}, `{"subject_id": null, "free_text": null}`},
		{subject.Catalog("b1c0"), `{"subject_id": "b1c0", "free_text": null}`},
		{subject.FreeText("recursion"), `{"subject_id": null, "free_text": "recursion"}`},
	}
	for _, tt := range tests {
		got, err := json.Marshal(tt.ref)
		require.NoError(t, err)
		assert.JSONEq(t, tt.want, string(got))
	}

	var ref subject.Ref
	err := json.Unmarshal([]byte(`{"subject_id": "b1c0", "free_text": "recursion"}`), &ref)
	assert.True(t, core.IsValidation(err), "both set must be rejected: %v", err)

	require.NoError(t, json.Unmarshal([]byte(`{"free_text": "loops"}`), &ref))
	assert.Equal(t, subject.FreeText("loops"), ref)
}

func TestRef_Columns(t *testing.T) {
	id, txt := subject.Catalog("b1c0").Columns()
	assert.Equal(t, "b1c0", id.String)
	assert.False(t, txt.Valid)

	id, txt = subject.FreeText("loops").Columns()
	assert.False(t, id.Valid)
	assert.Equal(t, "loops", txt.String)

	id, txt = subject.Ref{}.Columns()
	assert.False(t, id.Valid || txt.Valid)

	id.SetValid("b1c0")
	txt.SetValid("loops")
	_, err := subject.RefFromColumns(id, txt)
	assert.True(t, core.IsValidation(err))
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	loops := f.createSubject(t, f.cls, " Loops ")
	assert.Equal(t, "Loops", loops.Name)
	assert.True(t, loops.IsActive)

	// names are unique per classroom, case-insensitively
	_, err := f.Subjects.Create(ctx, subject.NewSubject{ClassroomID: f.cls.ID, Name: "loops", CreatedBy: f.teacher.ID})
	assert.Equal(t, subject.ErrNameExists, err)
	assert.True(t, core.IsConflict(err))

	// but may repeat across classrooms
	f.createSubject(t, f.other, "Loops")

	tests := []struct {
		name    string
		ns      subject.NewSubject
		wantErr func(error) bool
	}{
		{name: "blank name", ns: subject.NewSubject{ClassroomID: f.cls.ID, Name: " ", CreatedBy: f.teacher.ID}, wantErr: core.IsValidation},
		{name: "no classroom", ns: subject.NewSubject{Name: "Arrays", CreatedBy: f.teacher.ID}, wantErr: core.IsValidation},
		{name: "unknown classroom", ns: subject.NewSubject{ClassroomID: "missing", Name: "Arrays", CreatedBy: f.teacher.ID}, wantErr: core.IsNotFound},
		{name: "unknown creator", ns: subject.NewSubject{ClassroomID: f.cls.ID, Name: "Arrays", CreatedBy: "missing"}, wantErr: core.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Subjects.Create(ctx, tt.ns)
			assert.True(t, tt.wantErr(err), "got %v", err)
		})
	}
}

func TestService_ListForClassroom(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.createSubject(t, f.cls, "recursion")
	arrays := f.createSubject(t, f.cls, "Arrays")
	f.createSubject(t, f.cls, "Loops")
	f.createSubject(t, f.other, "Joins")

	_, err := f.Subjects.SetActive(ctx, arrays.ID, false)
	require.NoError(t, err)

	names := func(subjects []subject.Subject) []string {
		out := make([]string, 0, len(subjects))
		for _, s := range subjects {
			out = append(out, s.Name)
		}
		return out
	}

	all, err := f.Subjects.ListForClassroom(ctx, f.cls.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Arrays", "Loops", "recursion"}, names(all))

	active, err := f.Subjects.ListForClassroom(ctx, f.cls.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Loops", "recursion"}, names(active))

	_, err = f.Subjects.ListForClassroom(ctx, "missing", false)
	assert.Equal(t, classroom.ErrNotFound, err)

	_, err = f.Subjects.SetActive(ctx, "missing", true)
	assert.Equal(t, subject.ErrNotFound, err)
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	loops := f.createSubject(t, f.cls, "Loops")
	arrays := f.createSubject(t, f.cls, "Arrays")

	pref, err := f.Subjects.SetPreference(ctx, subject.NewPreference{StudentID: f.student.ID, ClassroomID: f.cls.ID, Subject: subject.Catalog(arrays.ID)})
	require.NoError(t, err)
	_, err = f.Chats.Open(ctx, chat.NewSession{StudentID: f.student.ID, ClassroomID: f.cls.ID, Subject: subject.Catalog(loops.ID)})
	require.NoError(t, err)

	// referenced by a chat: deactivate instead
	err = f.Subjects.Delete(ctx, loops.ID)
	assert.Equal(t, subject.ErrSubjectInUse, err)
	assert.True(t, core.IsReferentialIntegrity(err))

	sbj, err := f.Subjects.SetActive(ctx, loops.ID, false)
	require.NoError(t, err)
	assert.False(t, sbj.IsActive)

	// preferences go with the subject
	require.NoError(t, f.Subjects.Delete(ctx, arrays.ID))
	_, err = f.Subjects.GetPreference(ctx, pref.ID)
	assert.Equal(t, subject.ErrPreferenceNotFound, err)
	assert.Equal(t, subject.ErrNotFound, f.Subjects.Delete(ctx, arrays.ID))

	scored := f.createSubject(t, f.cls, "Sorting")
	_, err = f.Progress.Record(ctx, progress.NewScore{StudentID: f.student.ID, ClassroomID: f.cls.ID, Subject: subject.Catalog(scored.ID), Metric: "accuracy", Score: 60})
	require.NoError(t, err)
	assert.Equal(t, subject.ErrSubjectInUse, f.Subjects.Delete(ctx, scored.ID))
}

func TestService_ResolveRef(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	loops := f.createSubject(t, f.cls, "Loops")
	joins := f.createSubject(t, f.other, "Joins")
	retired := f.createSubject(t, f.cls, "Goto")
	_, err := f.Subjects.SetActive(ctx, retired.ID, false)
	require.NoError(t, err)

	tests := []struct {
		name          string
		ref           subject.Ref
		requireActive bool
		wantErr       error
	}{
		{name: "none", ref: subject.Ref{}, requireActive: true},
		{name: "free text", ref: subject.FreeText("pointers"), requireActive: true},
		{name: "catalog", ref: subject.Catalog(loops.ID), requireActive: true},
		{name: "foreign subject", ref: subject.Catalog(joins.ID), wantErr: subject.ErrForeignSubject},
		{name: "inactive subject", ref: subject.Catalog(retired.ID), requireActive: true, wantErr: subject.ErrInactiveSubject},
		{name: "inactive subject allowed", ref: subject.Catalog(retired.ID)},
		{name: "unknown subject", ref: subject.Catalog("missing"), wantErr: subject.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Subjects.ResolveRef(ctx, f.cls.ID, tt.ref, tt.requireActive)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ref, got)
		})
	}
}

func TestService_SetPreference(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	loops := f.createSubject(t, f.cls, "Loops")

	pref, err := f.Subjects.SetPreference(ctx, subject.NewPreference{StudentID: f.student.ID, ClassroomID: f.cls.ID, Subject: subject.Catalog(loops.ID)})
	require.NoError(t, err)
	assert.Equal(t, loops.ID, pref.Subject.SubjectID())

	_, err = f.Subjects.SetPreference(ctx, subject.NewPreference{StudentID: f.student.ID, ClassroomID: f.cls.ID, Subject: subject.FreeText("Pointers"), Priority: 1})
	require.NoError(t, err)

	tests := []struct {
		name    string
		np      subject.NewPreference
		wantErr func(error) bool
	}{
		{name: "no subject", np: subject.NewPreference{StudentID: f.student.ID, ClassroomID: f.cls.ID}, wantErr: core.IsValidation},
		{name: "same catalog subject", np: subject.NewPreference{StudentID: f.student.ID, ClassroomID: f.cls.ID, Subject: subject.Catalog(loops.ID)}, wantErr: core.IsConflict},
		{name: "same text, other case", np: subject.NewPreference{StudentID: f.student.ID, ClassroomID: f.cls.ID, Subject: subject.FreeText("pointers")}, wantErr: core.IsConflict},
		{name: "negative priority", np: subject.NewPreference{StudentID: f.student.ID, ClassroomID: f.cls.ID, Subject: subject.FreeText("Trees"), Priority: -1}, wantErr: core.IsValidation},
		{name: "not enrolled", np: subject.NewPreference{StudentID: f.teacher.ID, ClassroomID: f.cls.ID, Subject: subject.FreeText("Trees")}, wantErr: core.IsNotAMember},
		{name: "unknown classroom", np: subject.NewPreference{StudentID: f.student.ID, ClassroomID: "missing", Subject: subject.FreeText("Trees")}, wantErr: core.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Subjects.SetPreference(ctx, tt.np)
			assert.True(t, tt.wantErr(err), "got %v", err)
		})
	}

	prefs, err := f.Subjects.ListPreferences(ctx, f.student.ID, f.cls.ID)
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	assert.True(t, prefs[0].Subject.IsCatalog())
	assert.Equal(t, "Pointers", prefs[1].Subject.Text())

	require.NoError(t, f.Subjects.DeletePreference(ctx, pref.ID))
	assert.Equal(t, subject.ErrPreferenceNotFound, f.Subjects.DeletePreference(ctx, pref.ID))
}

func TestService_ReplacePreferences(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	loops := f.createSubject(t, f.cls, "Loops")
	joins := f.createSubject(t, f.other, "Joins")

	_, err := f.Subjects.SetPreference(ctx, subject.NewPreference{StudentID: f.student.ID, ClassroomID: f.cls.ID, Subject: subject.FreeText("Old topic")})
	require.NoError(t, err)

	prefs, err := f.Subjects.ReplacePreferences(ctx, f.student.ID, f.cls.ID, []subject.Ref{
		subject.FreeText("Trees"),
		subject.Catalog(loops.ID),
	})
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	assert.Equal(t, 0, prefs[0].Priority)
	assert.Equal(t, 1, prefs[1].Priority)

	// a foreign subject rolls the whole replacement back
	_, err = f.Subjects.ReplacePreferences(ctx, f.student.ID, f.cls.ID, []subject.Ref{
		subject.FreeText("Graphs"),
		subject.Catalog(joins.ID),
	})
	assert.Equal(t, subject.ErrForeignSubject, err)

	// so does an empty ref
	_, err = f.Subjects.ReplacePreferences(ctx, f.student.ID, f.cls.ID, []subject.Ref{{}})
	assert.True(t, core.IsValidation(err))

	got, err := f.Subjects.ListPreferences(ctx, f.student.ID, f.cls.ID)
	require.NoError(t, err)
	assert.Equal(t, prefs, got)

	// clearing
	prefs, err = f.Subjects.ReplacePreferences(ctx, f.student.ID, f.cls.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, prefs)

	require.NoError(t, f.Classrooms.RemoveStudent(ctx, f.cls.ID, f.student.ID))
	_, err = f.Subjects.ReplacePreferences(ctx, f.student.ID, f.cls.ID, nil)
	assert.True(t, core.IsNotAMember(err))
}

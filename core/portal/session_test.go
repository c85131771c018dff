package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsacademy/academia/core/user"
)

// fakeAuthSource drives the store by hand, recording unsubscription.
type fakeAuthSource struct {
	fn           func(*AuthRecord)
	unsubscribed bool
}

func (s *fakeAuthSource) OnAuthStateChanged(fn func(*AuthRecord)) func() {
	s.fn = fn
	return func() { s.unsubscribed = true }
}

func (s *fakeAuthSource) push(rec *AuthRecord) { s.fn(rec) }

func TestSessionStoreLoading(t *testing.T) {
	src := &fakeAuthSource{}
	store := NewSessionStore(src, nil)
	defer store.Close()

	// loading until the first notification, even a signed-out one
	assert.True(t, store.State().Loading)
	assert.Nil(t, store.State().Identity)

	src.push(nil)
	assert.False(t, store.State().Loading)
	assert.Nil(t, store.State().Identity)
}

func TestSessionStoreSignInOut(t *testing.T) {
	src := &fakeAuthSource{}
	store := NewSessionStore(src, nil)
	defer store.Close()

	src.push(&AuthRecord{
		ID:          "u1",
		DisplayName: "Jo Achieng",
		Email:       "jo@academia.test",
		Metadata:    map[string]string{"role": user.RoleTeacher, "classId": "c1"},
	})
	state := store.State()
	require.NotNil(t, state.Identity)
	assert.Equal(t, "u1", state.Identity.ID)
	assert.Equal(t, user.RoleTeacher, state.Identity.Role)
	assert.Equal(t, "c1", state.Identity.ClassID)

	src.push(nil)
	state = store.State()
	assert.Nil(t, state.Identity)
	assert.False(t, state.Loading)
}

// Records with a missing or unrecognized role must never surface as an
// authenticated identity.
func TestSessionStoreFailsClosedOnUnknownRole(t *testing.T) {
	src := &fakeAuthSource{}
	store := NewSessionStore(src, nil)
	defer store.Close()

	for _, md := range []map[string]string{
		nil,
		{},
		{"role": "superuser"},
		{"role": "Admin"}, // case-sensitive
	} {
		src.push(&AuthRecord{ID: "u1", Metadata: md})
		state := store.State()
		assert.Nil(t, state.Identity)
		assert.False(t, state.Loading)
	}
}

func TestSessionStoreClose(t *testing.T) {
	src := &fakeAuthSource{}
	store := NewSessionStore(src, nil)

	src.push(&AuthRecord{ID: "u1", Metadata: map[string]string{"role": user.RoleStudent}})
	require.NotNil(t, store.State().Identity)

	store.Close()
	assert.True(t, src.unsubscribed)

	// a straggler notification must not mutate state
	src.push(nil)
	assert.NotNil(t, store.State().Identity)

	store.Close() // second close is a no-op
}

func TestIdentityFromRecord(t *testing.T) {
	assert.Nil(t, IdentityFromRecord(nil, nil))

	idt := IdentityFromRecord(&AuthRecord{
		ID:       "u2",
		Email:    "a@b.test",
		Metadata: map[string]string{"role": user.RoleAdmin},
	}, nil)
	require.NotNil(t, idt)
	assert.Equal(t, "User", idt.Name) // display name fallback
	assert.True(t, idt.IsAdmin())
}

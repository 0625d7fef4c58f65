package identity

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notehub/internal/credential"
	"github.com/nhle/notehub/internal/model"
)

type recordingSessions struct {
	tokens []string
}

func (r *recordingSessions) SetSession(token string) {
	r.tokens = append(r.tokens, token)
}

func newTestProvider(t *testing.T) (*Provider, *credential.Keyring, *recordingSessions) {
	t.Helper()
	creds := credential.NewKeyring(keyring.NewArrayKeyring(nil))
	sessions := &recordingSessions{}
	return NewProvider(creds, sessions, nil), creds, sessions
}

var ada = model.Identity{RecipientID: "u-1", DisplayName: "Ada"}

func TestLoginStoresTokenAndPublishes(t *testing.T) {
	p, creds, sessions := newTestProvider(t)

	var seen []*model.Identity
	p.Subscribe(func(id *model.Identity) { seen = append(seen, id) })

	require.NoError(t, p.Login(ada, "tok-1"))

	token, err := creds.Get("u-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, []string{"tok-1"}, sessions.tokens)

	require.Len(t, seen, 1)
	assert.Equal(t, ada, *seen[0])
	assert.Equal(t, ada, *p.Current())
}

func TestLoginRejectsEmptyRecipient(t *testing.T) {
	p, _, _ := newTestProvider(t)
	err := p.Login(model.Identity{DisplayName: "nobody"}, "tok")
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Nil(t, p.Current())
}

func TestLogoutClearsTokenAndPublishesNil(t *testing.T) {
	p, creds, sessions := newTestProvider(t)
	require.NoError(t, p.Login(ada, "tok-1"))

	var seen []*model.Identity
	p.Subscribe(func(id *model.Identity) { seen = append(seen, id) })

	require.NoError(t, p.Logout())

	_, err := creds.Get("u-1")
	assert.ErrorIs(t, err, credential.ErrNotFound)
	assert.Equal(t, []string{"tok-1", ""}, sessions.tokens)
	assert.Equal(t, []*model.Identity{nil}, seen)
	assert.Nil(t, p.Current())

	require.NoError(t, p.Logout(), "second logout is a no-op")
	assert.Len(t, seen, 1)
}

func TestRestoreNeedsStoredToken(t *testing.T) {
	p, creds, sessions := newTestProvider(t)

	ok, err := p.Restore(&ada)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, p.Current())

	require.NoError(t, creds.Set("u-1", "tok-saved"))
	ok, err = p.Restore(&ada)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ada, *p.Current())
	assert.Equal(t, []string{"tok-saved"}, sessions.tokens)

	ok, err = p.Restore(nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	p, _, _ := newTestProvider(t)

	calls := 0
	unsubscribe := p.Subscribe(func(*model.Identity) { calls++ })
	require.NoError(t, p.Login(ada, "tok"))
	unsubscribe()
	require.NoError(t, p.Logout())

	assert.Equal(t, 1, calls)
}

func TestCurrentReturnsACopy(t *testing.T) {
	p, _, _ := newTestProvider(t)
	require.NoError(t, p.Login(ada, "tok"))

	p.Current().DisplayName = "changed"
	assert.Equal(t, "Ada", p.Current().DisplayName)
}

package rewards

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartrewards/service_layer/internal/app/domain/reward"
)

func testCatalog() reward.Catalog {
	return reward.Catalog{
		Currency: "INR",
		Table:    reward.DefaultTable(),
		Products: []reward.Product{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}, {ID: "p4"}},
	}
}

func TestEvaluateBands(t *testing.T) {
	svc := New(testCatalog(), nil)
	cases := []struct {
		cart  int64
		max   int
		state reward.State
	}{
		{0, 0, reward.StateLocked},
		{2999, 0, reward.StateLocked},
		{3000, 1, reward.StateSelecting},
		{3999, 1, reward.StateSelecting},
		{4000, 2, reward.StateSelecting},
		{4999, 2, reward.StateSelecting},
		{5000, 3, reward.StateSelecting},
		{100000, 3, reward.StateSelecting},
	}
	for _, tc := range cases {
		got, err := svc.Evaluate(tc.cart, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.max, got.MaxAllowed, "cart %d", tc.cart)
		assert.Equal(t, tc.state, got.State, "cart %d", tc.cart)
		assert.NotNil(t, got.Selected)
	}
}

func TestEvaluateTrimsSelection(t *testing.T) {
	svc := New(testCatalog(), nil)
	got, err := svc.Evaluate(4000, []string{"p1", " p2 ", "p3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, got.Selected)
	require.NotNil(t, got.Progress.Next)
	assert.Equal(t, int64(1000), got.Progress.Remaining)
}

func TestEvaluateErrors(t *testing.T) {
	svc := New(testCatalog(), nil)
	_, err := svc.Evaluate(-1, nil)
	assert.ErrorIs(t, err, ErrInvalidCartValue)

	_, err = svc.Evaluate(5000, []string{"unknown"})
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestToggleRejectsBeyondAllowance(t *testing.T) {
	svc := New(testCatalog(), nil)

	res, err := svc.Toggle(3000, []string{"p1"}, "p2")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, []string{"p1"}, res.Selected)

	res, err = svc.Toggle(3000, []string{"p1"}, "p1")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Empty(t, res.Selected)

	res, err = svc.Toggle(1000, nil, "p1")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, reward.StateLocked, res.State)
}

func TestToggleValidation(t *testing.T) {
	svc := New(testCatalog(), nil)
	_, err := svc.Toggle(5000, nil, "")
	assert.True(t, errors.Is(err, ErrProductRequired))
	_, err = svc.Toggle(5000, nil, "nope")
	assert.True(t, errors.Is(err, ErrUnknownProduct))
}

func TestSessionReevaluatesOnCartChange(t *testing.T) {
	svc := New(testCatalog(), nil)
	sess := svc.NewSession()

	assert.Equal(t, reward.StateLocked, sess.Current().State)

	_, err := sess.UpdateCart(5000)
	require.NoError(t, err)
	for _, id := range []string{"p1", "p2", "p3"} {
		res, err := sess.Toggle(id)
		require.NoError(t, err)
		assert.True(t, res.Accepted, id)
	}
	res, err := sess.Toggle("p4")
	require.NoError(t, err)
	assert.False(t, res.Accepted)

	elig, err := sess.UpdateCart(4200)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, elig.Selected)

	elig, err = sess.UpdateCart(100)
	require.NoError(t, err)
	assert.Equal(t, reward.StateLocked, elig.State)
	assert.Empty(t, elig.Selected)

	_, err = sess.UpdateCart(-5)
	assert.ErrorIs(t, err, ErrInvalidCartValue)
}

func TestViewDefaultsTable(t *testing.T) {
	svc := New(reward.Catalog{}, nil)
	view := svc.View()
	assert.Len(t, view.Tiers, 3)
	assert.NotNil(t, view.Products)
	assert.Equal(t, 3, svc.Catalog().Table.MaxAllowed(5000))
}

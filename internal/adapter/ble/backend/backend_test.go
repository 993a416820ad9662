package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluepulse/internal/domain"
	"bluepulse/internal/infra/config"
)

func TestNewMock(t *testing.T) {
	tr, err := New(config.BLEConfig{Backend: "mock"}, nil, nil)
	require.NoError(t, err)

	devs, err := tr.Scan(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Equal(t, "BluePulse Echo", devs[0].Name)

	dev, err := tr.RequestDevice(context.Background(), domain.RequestOptions{AcceptAllDevices: true})
	require.NoError(t, err)
	assert.Equal(t, devs[0].ID, dev.ID())
	assert.NoError(t, tr.Close())
}

func TestNewMockWithChooser(t *testing.T) {
	tr, err := New(config.BLEConfig{Backend: "mock"}, Chooser("nobody", nil), nil)
	require.NoError(t, err)
	_, err = tr.RequestDevice(context.Background(), domain.RequestOptions{})
	assert.ErrorIs(t, err, domain.ErrNoDevicesFound)
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(config.BLEConfig{Backend: "carrier-pigeon"}, nil, nil)
	assert.Error(t, err)
}

func TestChooserPrefersConfiguredDevice(t *testing.T) {
	called := false
	interactive := func(context.Context, []domain.DeviceInfo) (string, error) {
		called = true
		return "", domain.ErrUserCancelled
	}
	devs := []domain.DeviceInfo{{ID: "a", Name: "Band"}, {ID: "b", Name: "Thermo"}}

	id, err := Chooser("thermo", interactive)(context.Background(), devs)
	require.NoError(t, err)
	assert.Equal(t, "b", id)
	assert.False(t, called)

	_, err = Chooser("", interactive)(context.Background(), devs)
	assert.ErrorIs(t, err, domain.ErrUserCancelled)
	assert.True(t, called)
}

func TestLazyChooser(t *testing.T) {
	var picker domain.Chooser
	lazy := NewLazy(func() domain.Chooser { return picker })
	devs := []domain.DeviceInfo{{ID: "a"}, {ID: "b"}}

	id, err := lazy.Choose(context.Background(), devs)
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	picker = func(context.Context, []domain.DeviceInfo) (string, error) { return "b", nil }
	id, err = lazy.Choose(context.Background(), devs)
	require.NoError(t, err)
	assert.Equal(t, "b", id)
}

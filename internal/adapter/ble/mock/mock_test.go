package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluepulse/internal/domain"
)

func TestRequestDeviceDefaultsToFirst(t *testing.T) {
	tr := New(EchoDevice(), NewDevice("aa", "Other"))
	dev, err := tr.RequestDevice(context.Background(), domain.RequestOptions{AcceptAllDevices: true})
	require.NoError(t, err)
	assert.Equal(t, "BluePulse Echo", dev.Name())
}

func TestRequestDeviceChooser(t *testing.T) {
	tr := New(EchoDevice(), NewDevice("aa", "Other"))
	tr.SetChooser(func(_ context.Context, devs []domain.DeviceInfo) (string, error) {
		require.Len(t, devs, 2)
		return "aa", nil
	})
	dev, err := tr.RequestDevice(context.Background(), domain.RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, "aa", dev.ID())

	tr.SetChooser(func(context.Context, []domain.DeviceInfo) (string, error) { return "", domain.ErrUserCancelled })
	_, err = tr.RequestDevice(context.Background(), domain.RequestOptions{})
	assert.ErrorIs(t, err, domain.ErrUserCancelled)
}

func TestRequestDeviceNoDevices(t *testing.T) {
	_, err := New().RequestDevice(context.Background(), domain.RequestOptions{})
	assert.ErrorIs(t, err, domain.ErrNoDevicesFound)
}

func TestEchoDeviceRoundTrip(t *testing.T) {
	dev := EchoDevice()
	sess, err := dev.Open(context.Background())
	require.NoError(t, err)

	services, err := sess.Services(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, domain.UARTServiceUUID, services[0].UUID())

	chars, err := services[0].Characteristics(context.Background())
	require.NoError(t, err)
	require.Len(t, chars, 2)
	tx, rx := chars[0], chars[1]
	assert.True(t, tx.Properties().CanNotify())
	assert.True(t, rx.Properties().CanWrite())

	got := make(chan []byte, 1)
	require.NoError(t, tx.Subscribe(context.Background(), func(b []byte) { got <- b }))
	require.NoError(t, rx.Write(context.Background(), []byte("ping\n")))

	select {
	case b := <-got:
		assert.Equal(t, "ping\n", string(b))
	case <-time.After(time.Second):
		t.Fatal("no echo")
	}
}

func TestCloseFiresDisconnectAndUnsubscribes(t *testing.T) {
	tx := NewCharacteristic("tx", domain.PropNotify)
	dev := NewDevice("id", "n", NewService("svc", tx))
	fired := 0
	dev.OnDisconnect(func() { fired++ })

	sess, err := dev.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Subscribe(context.Background(), func([]byte) {}))
	assert.True(t, dev.IsOpen())

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	assert.Equal(t, 1, fired)
	assert.Equal(t, 2, dev.Closes())
	assert.False(t, tx.Subscribed())
	assert.False(t, tx.Notify([]byte("late")))

	_, err = sess.Services(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
}

func TestDropLinkOnlyWhenOpen(t *testing.T) {
	dev := NewDevice("id", "n")
	fired := 0
	dev.OnDisconnect(func() { fired++ })

	dev.DropLink()
	assert.Zero(t, fired)

	_, err := dev.Open(context.Background())
	require.NoError(t, err)
	New(dev).Close()
	assert.Equal(t, 1, fired)
}

func TestFailureInjection(t *testing.T) {
	boom := errors.New("boom")
	c := NewCharacteristic("c", domain.PropWrite|domain.PropNotify)
	dev := NewDevice("id", "n", NewService("svc", c))

	dev.FailOpen(boom)
	_, err := dev.Open(context.Background())
	assert.ErrorIs(t, err, boom)
	dev.FailOpen(nil)

	sess, err := dev.Open(context.Background())
	require.NoError(t, err)
	dev.FailDiscovery(boom)
	_, err = sess.Services(context.Background())
	assert.ErrorIs(t, err, boom)

	c.FailWrite(boom)
	assert.ErrorIs(t, c.Write(context.Background(), []byte("x")), boom)
	c.FailWrite(nil)
	require.NoError(t, c.Write(context.Background(), []byte("x")))
	assert.Equal(t, [][]byte{[]byte("x")}, c.Writes())

	c.FailSubscribe(boom)
	assert.ErrorIs(t, c.Subscribe(context.Background(), func([]byte) {}), boom)
}

func TestPropertyChecks(t *testing.T) {
	ro := NewCharacteristic("ro", domain.PropRead)
	assert.ErrorIs(t, ro.Write(context.Background(), []byte("x")), domain.ErrTransportFailure)
	assert.ErrorIs(t, ro.Subscribe(context.Background(), func([]byte) {}), domain.ErrTransportFailure)
}

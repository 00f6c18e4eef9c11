package frontend

import (
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func waitHealthy(t *testing.T, port int) {
	t.Helper()
	url := fmt.Sprintf("http://127.0.0.1:%d/healthz", port)
	for i := 0; i < 50; i++ {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("http endpoint on port %d never became healthy", port)
}

func dialBinary(t *testing.T, port int) thrift.TProtocol {
	t.Helper()
	var sock *thrift.TSocket
	var err error
	for i := 0; i < 50; i++ {
		sock, err = thrift.NewTSocket(fmt.Sprintf("127.0.0.1:%d", port))
		require.NoError(t, err)
		if err = sock.Open(); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	t.Cleanup(func() { sock.Close() })
	return thrift.NewTBinaryProtocolTransport(sock)
}

func TestFrontend_ServesBothEndpoints(t *testing.T) {
	handler := &fakeHandler{session: "session-1"}
	proc := NewProcessor(zerolog.Nop(), handler)

	binaryPort := freePort(t)
	httpPort := freePort(t)
	fe, err := New(zerolog.Nop(), proc, Options{
		Port:     binaryPort,
		HTTPPort: httpPort,
		PoolSize: 2,
	})
	require.NoError(t, err)

	fe.Start()
	defer fe.Stop()

	waitHealthy(t, httpPort)

	prot := dialBinary(t, binaryPort)
	writeCall(t, prot, "connect", []callArg{
		{"user", 1, "mapd"},
		{"passwd", 2, "HyperInteractive"},
		{"dbname", 3, "mapd"},
	})

	name, typeID, _, err := prot.ReadMessageBegin()
	require.NoError(t, err)
	assert.Equal(t, "connect", name)
	assert.Equal(t, thrift.REPLY, typeID)
}

func TestFrontend_EndpointsFailIndependently(t *testing.T) {
	proc := NewProcessor(zerolog.Nop(), &fakeHandler{})

	httpPort := freePort(t)
	fe, err := New(zerolog.Nop(), proc, Options{
		Port:     freePort(t),
		HTTPPort: httpPort,
		PoolSize: 2,
	})
	require.NoError(t, err)

	fe.Start()
	waitHealthy(t, httpPort)

	// Tear down the binary endpoint alone; HTTP must keep serving.
	fe.binary.Stop()
	time.Sleep(50 * time.Millisecond)
	waitHealthy(t, httpPort)

	fe.http.Stop()

	done := make(chan struct{})
	go func() {
		fe.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after both endpoints stopped")
	}
}

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fixkme/calcsrv/framework/config"
	"github.com/fixkme/calcsrv/framework/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) string {
	t.Helper()
	conf, err := config.LoadConfig("")
	require.NoError(t, err)
	conf.RpcListenAddr = "127.0.0.1:0"
	m, err := core.NewRpcModule("rpc", conf)
	require.NoError(t, err)
	require.NoError(t, m.OnInit())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run()
	}()
	t.Cleanup(func() {
		m.Destroy()
		<-done
	})
	return m.Addr().String()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := newRootCmd(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestCalcAndCount(t *testing.T) {
	addr := startServer(t)

	out, err := run(t, "--addr", addr, "add", "2", "3")
	require.NoError(t, err)
	assert.Equal(t, "5", out)

	out, err = run(t, "--addr", addr, "multiply", "-4", "5")
	require.NoError(t, err)
	assert.Equal(t, "-20", out)

	out, err = run(t, "--addr", addr, "subtract", "-4", "5")
	require.NoError(t, err)
	assert.Equal(t, "-9", out)

	// 全局 flag 也可以写在操作数后面
	out, err = run(t, "divide", "-9", "-3", "--addr", addr, "--timeout=2s")
	require.NoError(t, err)
	assert.Equal(t, "3", out)

	out, err = run(t, "--addr", addr, "add", "--", "-1", "-2")
	require.NoError(t, err)
	assert.Equal(t, "-3", out)

	_, err = run(t, "--addr", addr, "divide", "10", "0")
	assert.ErrorContains(t, err, "Cannot divide by zero!")

	out, err = run(t, "--addr", addr, "count")
	require.NoError(t, err)
	assert.Equal(t, "6", out)

	_, err = run(t, "--addr", addr, "count", "--token", "Bearer nope")
	assert.Error(t, err)
}

func TestBadArgs(t *testing.T) {
	_, err := run(t, "add", "1")
	assert.Error(t, err)
	_, err = run(t, "add", "x", "1")
	assert.ErrorContains(t, err, "bad A")
	_, err = run(t, "add", "1", "-x")
	assert.ErrorContains(t, err, "bad B")
	_, err = run(t, "add", "1", "2", "--nope")
	assert.ErrorContains(t, err, "unknown flag: --nope")
	_, err = run(t, "add", "1", "2", "--timeout")
	assert.ErrorContains(t, err, "flag needs an argument")
	_, err = run(t, "add", "1", "2", "--timeout", "soon")
	assert.ErrorContains(t, err, "--timeout")
}

func TestCalcOperands(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{})
	sub, _, err := cmd.Find([]string{"multiply"})
	require.NoError(t, err)

	args, err := calcOperands(sub, []string{"-4", "--addr", "10.0.0.1:1", "5"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-4", "5"}, args)
	assert.Equal(t, "10.0.0.1:1", sub.InheritedFlags().Lookup("addr").Value.String())

	args, err = calcOperands(sub, []string{"--help"})
	assert.NoError(t, err)
	assert.Nil(t, args)
}

func TestToken(t *testing.T) {
	out, err := run(t, "token", "--secret", "s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Bearer "))

	_, err = run(t, "token")
	assert.Error(t, err)
}

func TestSchema(t *testing.T) {
	out, err := run(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"calculator.proto"`)
	assert.Contains(t, out, "GetRequestCount")
}

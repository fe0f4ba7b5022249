package main

import (
	"context"
	"fmt"
	"log/slog"

	ferrors "cargo-fixture/internal/errors"
	"cargo-fixture/pkg/interrupt"
	"cargo-fixture/pkg/server"
	"cargo-fixture/pkg/supervisor"
)

// errNeverConnected is returned when the fixture exits without connecting.
var errNeverConnected = ferrors.New(ferrors.KindProcess, "fixture program exited without connecting")

type sessionResult struct {
	sess *server.FixtureSession
	err  error
}

type testResult struct {
	code int
	err  error
}

// serve runs one fixture lifecycle: build, listen, launch the fixture,
// serve it and the tests, then wait for it to wrap up. The returned code is
// the test command's; a returned error is fatal.
func serve(ctx context.Context, s *settings) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	kills := interrupt.Watch(ctx, s.interruptWindow)

	inv := &s.inv
	slog.Debug("building fixture", "cmd", inv.BuildArgv())
	exe, err := supervisor.Build(inv.BuildCmd(ctx), inv.Fixture)
	if err != nil {
		return 0, fmt.Errorf("could not build fixture program: %w", err)
	}

	ln, err := server.Listen(inv.SocketPath, s.handshakeTimeout)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := ln.Close(); err != nil {
			slog.Warn("failed to close socket", "path", ln.Path(), "err", err)
		}
	}()
	srv := server.New(ln, inv)

	slog.Info("setting up fixture...")
	fixture, err := supervisor.Start(inv.FixtureCmd(exe), "fixture process")
	if err != nil {
		return 0, err
	}

	sess, err := awaitFixture(srv, fixture, kills, s)
	if err != nil {
		// The fixture has a process group of its own, so nothing else
		// would stop it.
		fixture.Terminate("fixture did not connect")
		<-fixture.Done()
		return 0, err
	}

	go func() {
		if err := srv.AcceptTests(); err != nil {
			slog.Error("test connections no longer accepted", "err", err)
		}
	}()

	res, fixtureExited := runSession(ctx, sess, fixture, kills)
	if !fixtureExited {
		awaitWrapUp(fixture, kills, s)
	}
	return exitStatus(res, fixture.Err())
}

// awaitFixture waits for the fixture to connect, killing it on a double
// interrupt.
func awaitFixture(srv *server.Server, fixture *supervisor.Process, kills <-chan struct{}, s *settings) (*server.FixtureSession, error) {
	stall := supervisor.StallWarning(s.stallInterval, "connected")
	defer stall.Stop()

	accepted := make(chan sessionResult, 1)
	go func() {
		sess, err := srv.AcceptFixture()
		accepted <- sessionResult{sess, err}
	}()

	for {
		select {
		case r := <-accepted:
			return r.sess, r.err
		case <-fixture.Done():
			if err := fixture.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", errNeverConnected, err)
			}
			return nil, errNeverConnected
		case <-kills:
			fixture.Kill()
		}
	}
}

// runSession serves the fixture connection, which runs the tests on Ready.
// It reports whether the fixture exited meanwhile.
func runSession(ctx context.Context, sess *server.FixtureSession, fixture *supervisor.Process, kills <-chan struct{}) (testResult, bool) {
	done := make(chan testResult, 1)
	go func() {
		code, err := sess.Run(ctx)
		done <- testResult{code, err}
	}()

	exited := fixture.Done()
	for {
		select {
		case res := <-done:
			return res, exited == nil
		case <-exited:
			if err := fixture.Err(); err != nil {
				slog.Error(err.Error())
			}
			exited = nil
		case <-kills:
			fixture.Kill()
		}
	}
}

// awaitWrapUp waits for the fixture to exit after the tests, killing it on
// a double interrupt.
func awaitWrapUp(fixture *supervisor.Process, kills <-chan struct{}, s *settings) {
	stall := supervisor.StallWarning(s.stallInterval, "wrapped up")
	defer stall.Stop()
	for {
		select {
		case <-fixture.Done():
			return
		case <-kills:
			fixture.Kill()
		}
	}
}

// exitStatus combines the test outcome with the fixture's. A failed test
// command decides the status. Only when it passed does a failed fixture
// turn the run into an error.
func exitStatus(res testResult, fixtureErr error) (int, error) {
	if res.err != nil || res.code != 0 {
		return res.code, res.err
	}
	if fixtureErr != nil {
		return 0, fixtureErr
	}
	return 0, nil
}

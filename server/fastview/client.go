package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second

	// Updates arriving faster than this are dropped.
	pubResolution  = time.Millisecond * 100
	pingResolution = time.Millisecond * 200
	// The number of pings the peer may miss before it is considered gone.
	pongWait = pingResolution * 4

	readDeadline     = time.Second
	writeDeadline    = time.Second
	closeGracePeriod = time.Second
)

var upgrader = websocket.Upgrader{}

var (
	// ErrPongDeadlineExceeded means the peer stopped answering pings.
	ErrPongDeadlineExceeded = errors.New("client disconnect, pong deadline exceeded")
	// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
	ErrSockCongestion = errors.New("sock op failed due to congestion")
)

// Client publishes updates one way, from server to browser, over a websocket.
type Client[T any] struct {
	updates <-chan T
	ws      *websock
	rootCtx context.Context
}

// NewClient upgrades the request to a websocket. Items in updates must be idempotent:
// intervening items are discarded when they arrive faster than the publication rate,
// so the latest item alone must describe the client's new state.
func NewClient[T any](
	updates <-chan T,
	w http.ResponseWriter,
	r *http.Request,
) (*Client[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}

	return &Client[T]{
		updates: updates,
		ws:      newWebSock(ws),
		rootCtx: r.Context(),
	}, nil
}

// Sync publishes updates to the client until it disconnects, the request context is
// done or the updates chan is closed, then closes the socket. Client disconnects are
// not errors.
func (cli *Client[T]) Sync() error {
	group, groupCtx := errgroup.WithContext(cli.rootCtx)
	group.Go(func() error {
		// Closing the socket unblocks readMessages.
		<-groupCtx.Done()
		cli.ws.Close()
		return nil
	})
	group.Go(func() error {
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		// Returning an error cancels groupCtx, tearing down the other routines.
		if err := cli.publish(groupCtx); err != nil {
			return err
		}
		return errPublishDone
	})

	if err := group.Wait(); err != nil && !errors.Is(err, errPublishDone) && !isClosure(err) {
		return err
	}
	return nil
}

var errPublishDone = errors.New("publish done")

// pingPong checks the client's liveness. The pong handler only runs while
// readMessages is reading.
func (cli *Client[T]) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (cli *Client[T]) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) error {
			err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			if isError(err) {
				return fmt.Errorf("ping: %w", err)
			}
			return err
		})
}

// readMessages drains messages from the client. Read errors are permanent, so any
// error tears down the client.
func (cli *Client[T]) readMessages(ctx context.Context) error {
	for {
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) error {
				_, _, err := ws.ReadMessage()
				return err
			})
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (cli *Client[T]) publish(ctx context.Context) error {
	var lastSync time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case updates, ok := <-cli.updates:
			if !ok {
				return nil
			}
			if time.Since(lastSync) < pubResolution {
				continue
			}

			lastSync = time.Now()
			err := cli.ws.Write(
				ctx,
				func(ws *websocket.Conn) error {
					if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
						return fmt.Errorf("set write deadline: %w", err)
					}
					err := ws.WriteJSON(updates)
					if isError(err) {
						return fmt.Errorf("publish: %w", err)
					}
					return err
				})
			if err != nil {
				return err
			}
		}
	}
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// websock serializes reads and writes to the websocket, which allows only one
// concurrent reader and one concurrent writer.
type websock struct {
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func newWebSock(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Conn returns the underlying websocket, for non-concurrent setup such as adding handlers.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Close sends a close frame and closes the socket. Pending readers are unblocked by the
// close itself, so only the write side is serialized.
func (sock *websock) Close() {
	sock.writeSem <- struct{}{}
	defer func() { <-sock.writeSem }()

	_ = sock.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = sock.ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	time.Sleep(closeGracePeriod)
	sock.ws.Close()
}

// Read serializes read operations on the websocket.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	case <-time.After(readDeadline):
		return ErrSockCongestion
	}
}

// Write serializes write operations on the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}

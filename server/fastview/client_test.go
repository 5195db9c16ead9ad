package fastview

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClient(t *testing.T) {
	Convey("Given a websocket client fed by an updates chan", t, func() {
		updates := make(chan []EleUpdate)
		synced := make(chan error, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cli, err := NewClient[[]EleUpdate](updates, w, r)
			if err != nil {
				synced <- err
				return
			}
			synced <- cli.Sync()
		}))
		defer srv.Close()

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		Convey("Updates are published as json", func() {
			sent := []EleUpdate{{EleId: "0-0-value-text", Ops: []Op{{Key: "textContent", Value: "1.0"}}}}
			go func() { updates <- sent }()

			var got []EleUpdate
			So(conn.SetReadDeadline(time.Now().Add(2*time.Second)), ShouldBeNil)
			So(conn.ReadJSON(&got), ShouldBeNil)
			So(got, ShouldResemble, sent)
		})

		Convey("A client that goes away ends the sync without error", func() {
			_ = conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			select {
			case err := <-synced:
				So(err, ShouldBeNil)
			case <-time.After(5 * time.Second):
				t.Fatal("sync did not return")
			}
		})
	})

	Convey("A plain http request is not upgraded", t, func() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		_, err := NewClient[int](make(chan int), rec, req)
		So(err, ShouldNotBeNil)
		So(rec.Code, ShouldEqual, http.StatusBadRequest)
	})
}

package controller_test

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"

	"telecare/broker"
	"telecare/broker/subscription"
	"telecare/database"
	"telecare/database/memory"
	"telecare/metric"
	"telecare/pkg/socket"
	"telecare/relay/controller"
	"telecare/types/client/request"
	"telecare/types/client/response"
	"telecare/types/envelope"
	"telecare/types/invite"
	"telecare/types/message"
)

func webrtcCandidate(candidate string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: candidate}
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	assert.NoError(t, err)
	return raw
}

// scriptReads makes the mock socket return the given requests in order and
// then fail with EOF, which ends the controller's receive loop.
func scriptReads(t *testing.T, sock *socket.MockSocket, requests ...request.Common) {
	t.Helper()
	var calls []*gomock.Call
	for _, req := range requests {
		req := req
		calls = append(calls, sock.EXPECT().ReadJSON(gomock.Any()).DoAndReturn(func(v any) error {
			*v.(*request.Common) = req
			return nil
		}))
	}
	calls = append(calls, sock.EXPECT().ReadJSON(gomock.Any()).Return(io.EOF).AnyTimes())
	gomock.InOrder(calls...)
}

func registerRequest(t *testing.T, userID string) request.Common {
	t.Helper()
	return request.Common{
		Type:    request.REGISTER,
		Payload: mustMarshal(t, request.Register{UserID: userID}),
	}
}

type rig struct {
	controller *controller.Controller
	broker     *broker.Broker
	db         *memory.DB
}

func newRig(t *testing.T) *rig {
	t.Helper()
	b := broker.New()
	db := memory.New(database.Config{})
	return &rig{
		controller: controller.New(b, db, metric.New(metric.Config{})),
		broker:     b,
		db:         db,
	}
}

func waitMessage(t *testing.T, sub *subscription.Subscription) any {
	t.Helper()
	select {
	case msg := <-sub.Receive():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broker message")
		return nil
	}
}

func TestProcessRegistration(t *testing.T) {
	t.Run("given register request when processed then lifecycle events are published", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		r := newRig(t)
		registered := r.broker.Subscribe(broker.Client, broker.REGISTER)
		deregistered := r.broker.Subscribe(broker.Client, broker.DEREGISTER)

		sock := socket.NewMockSocket(ctrl)
		scriptReads(t, sock, registerRequest(t, "doctor-1"))
		sock.EXPECT().WriteJSON(response.Register{Type: response.REGISTER, Message: "registered"}).Return(nil)

		assert.Error(t, r.controller.Process(sock)) // EOF ends the loop

		msg := waitMessage(t, registered)
		assert.Equal(t, message.Register{UserID: "doctor-1"}, msg)
		msg = waitMessage(t, deregistered)
		assert.Equal(t, message.Deregister{UserID: "doctor-1"}, msg)
	})

	t.Run("given non-register first request when processed then connection is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		r := newRig(t)

		sock := socket.NewMockSocket(ctrl)
		sock.EXPECT().ReadJSON(gomock.Any()).DoAndReturn(func(v any) error {
			*v.(*request.Common) = request.Common{
				Type:    request.JOIN,
				Payload: mustMarshal(t, request.Join{RoomID: "room-1"}),
			}
			return nil
		})

		assert.Error(t, r.controller.Process(sock))
	})

	t.Run("given already registered user when processed then connection is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		r := newRig(t)
		assert.NoError(t, r.db.CreateClientInfo("doctor-1"))

		sock := socket.NewMockSocket(ctrl)
		sock.EXPECT().ReadJSON(gomock.Any()).DoAndReturn(func(v any) error {
			*v.(*request.Common) = registerRequest(t, "doctor-1")
			return nil
		})

		err := r.controller.Process(sock)
		assert.ErrorIs(t, err, database.ErrClientAlreadyExists)
	})

	t.Run("given empty user id when processed then connection is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		r := newRig(t)

		sock := socket.NewMockSocket(ctrl)
		sock.EXPECT().ReadJSON(gomock.Any()).DoAndReturn(func(v any) error {
			*v.(*request.Common) = registerRequest(t, "")
			return nil
		})

		assert.Error(t, r.controller.Process(sock))
	})
}

func TestProcessSignal(t *testing.T) {
	t.Run("given room member when signaling then counterpart receives the envelope", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		r := newRig(t)
		_, err := r.db.CreateMemberInfo("room-1", "doctor-1")
		assert.NoError(t, err)
		_, err = r.db.CreateMemberInfo("room-1", "patient-7")
		assert.NoError(t, err)
		patientSocket := r.broker.Subscribe(broker.ClientSocket, broker.Detail("patient-7"))

		sock := socket.NewMockSocket(ctrl)
		scriptReads(t, sock,
			registerRequest(t, "doctor-1"),
			request.Common{
				Type: request.SIGNAL,
				Payload: mustMarshal(t, request.Signal{
					RoomID:   "room-1",
					Envelope: envelope.NewOffer("offer-sdp"),
				}),
			},
		)
		sock.EXPECT().WriteJSON(gomock.Any()).Return(nil).AnyTimes()

		assert.Error(t, r.controller.Process(sock))

		msg := waitMessage(t, patientSocket)
		sig, ok := msg.(response.Signal)
		assert.True(t, ok)
		assert.Equal(t, "room-1", sig.RoomID)
		assert.Equal(t, envelope.Offer, sig.Envelope.Type)
		assert.Equal(t, "offer-sdp", sig.Envelope.Payload.SDP)
	})

	t.Run("given non-member when signaling then envelope is not relayed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		r := newRig(t)
		_, err := r.db.CreateMemberInfo("room-1", "patient-7")
		assert.NoError(t, err)
		patientSocket := r.broker.Subscribe(broker.ClientSocket, broker.Detail("patient-7"))

		sock := socket.NewMockSocket(ctrl)
		scriptReads(t, sock,
			registerRequest(t, "doctor-1"),
			request.Common{
				Type: request.SIGNAL,
				Payload: mustMarshal(t, request.Signal{
					RoomID:   "room-1",
					Envelope: envelope.NewOffer("offer-sdp"),
				}),
			},
		)
		sock.EXPECT().WriteJSON(gomock.Any()).Return(nil).AnyTimes()

		assert.Error(t, r.controller.Process(sock))

		select {
		case msg := <-patientSocket.Receive():
			t.Fatalf("unauthorized envelope relayed: %v", msg)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("given lone member when signaling then envelope is dropped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		r := newRig(t)
		_, err := r.db.CreateMemberInfo("room-1", "doctor-1")
		assert.NoError(t, err)

		sock := socket.NewMockSocket(ctrl)
		scriptReads(t, sock,
			registerRequest(t, "doctor-1"),
			request.Common{
				Type: request.SIGNAL,
				Payload: mustMarshal(t, request.Signal{
					RoomID:   "room-1",
					Envelope: envelope.NewCandidate(webrtcCandidate("c-1")),
				}),
			},
		)
		sock.EXPECT().WriteJSON(gomock.Any()).Return(nil).AnyTimes()

		// No counterpart; processing still succeeds up to EOF.
		assert.Error(t, r.controller.Process(sock))
	})
}

func TestProcessInvite(t *testing.T) {
	t.Run("given online recipient when invited then notice lands on their channel", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		r := newRig(t)
		assert.NoError(t, r.db.CreateClientInfo("patient-7"))
		patientSocket := r.broker.Subscribe(broker.ClientSocket, broker.Detail("patient-7"))

		invitation := invite.Invitation{
			SessionID:   "s-1",
			Kind:        invite.KindVideo,
			CallerID:    "doctor-1",
			CallerName:  "Dr. Kim",
			RecipientID: "patient-7",
		}
		sock := socket.NewMockSocket(ctrl)
		scriptReads(t, sock,
			registerRequest(t, "doctor-1"),
			request.Common{
				Type:    request.INVITE,
				Payload: mustMarshal(t, request.Invite{Invitation: invitation}),
			},
		)
		sock.EXPECT().WriteJSON(gomock.Any()).Return(nil).AnyTimes()

		assert.Error(t, r.controller.Process(sock))

		msg := waitMessage(t, patientSocket)
		notice, ok := msg.(response.Notice)
		assert.True(t, ok)
		assert.Equal(t, invitation, notice.Invitation)
	})

	t.Run("given offline recipient when invited then notice is dropped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		r := newRig(t)
		offlineSocket := r.broker.Subscribe(broker.ClientSocket, broker.Detail("patient-7"))

		sock := socket.NewMockSocket(ctrl)
		scriptReads(t, sock,
			registerRequest(t, "doctor-1"),
			request.Common{
				Type: request.INVITE,
				Payload: mustMarshal(t, request.Invite{Invitation: invite.Invitation{
					SessionID: "s-1", CallerID: "doctor-1", RecipientID: "patient-7",
				}}),
			},
		)
		sock.EXPECT().WriteJSON(gomock.Any()).Return(nil).AnyTimes()

		assert.Error(t, r.controller.Process(sock))

		select {
		case msg := <-offlineSocket.Receive():
			t.Fatalf("notice delivered to offline recipient: %v", msg)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("given spoofed caller id when invited then notice is refused", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		r := newRig(t)
		assert.NoError(t, r.db.CreateClientInfo("patient-7"))
		patientSocket := r.broker.Subscribe(broker.ClientSocket, broker.Detail("patient-7"))

		sock := socket.NewMockSocket(ctrl)
		scriptReads(t, sock,
			registerRequest(t, "doctor-1"),
			request.Common{
				Type: request.INVITE,
				Payload: mustMarshal(t, request.Invite{Invitation: invite.Invitation{
					SessionID: "s-1", CallerID: "someone-else", RecipientID: "patient-7",
				}}),
			},
		)
		sock.EXPECT().WriteJSON(gomock.Any()).Return(nil).AnyTimes()

		assert.Error(t, r.controller.Process(sock))

		select {
		case msg := <-patientSocket.Receive():
			t.Fatalf("spoofed invitation relayed: %v", msg)
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestProcessRoomRequests(t *testing.T) {
	t.Run("given join and leave requests when processed then room events are published", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		r := newRig(t)
		roomEvents := r.broker.Subscribe(broker.Client, broker.ROOM)

		sock := socket.NewMockSocket(ctrl)
		scriptReads(t, sock,
			registerRequest(t, "doctor-1"),
			request.Common{Type: request.JOIN, Payload: mustMarshal(t, request.Join{RoomID: "room-1"})},
			request.Common{Type: request.LEAVE, Payload: mustMarshal(t, request.Leave{RoomID: "room-1"})},
		)
		sock.EXPECT().WriteJSON(gomock.Any()).Return(nil).AnyTimes()

		assert.Error(t, r.controller.Process(sock))

		// One detail carries both, so the leave cannot overtake the join.
		assert.Equal(t, message.Join{RoomID: "room-1", UserID: "doctor-1"}, waitMessage(t, roomEvents))
		assert.Equal(t, message.Leave{RoomID: "room-1", UserID: "doctor-1"}, waitMessage(t, roomEvents))
	})
}

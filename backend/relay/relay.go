package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kmlikithkumar/skillswap/backend/model"
	"github.com/kmlikithkumar/skillswap/backend/registry"
	"github.com/rs/zerolog"
)

const (
	defaultFwdTimeout = time.Second
)

// Membership is the registry view the relay needs.
type Membership interface {
	MembersOf(roomID string) []registry.Member
}

// Relay forwards signaling envelopes and broadcasts chat events to room
// members over their wires. It keeps no state of its own; membership is
// looked up per envelope.
type Relay struct {
	reg    Membership
	logger zerolog.Logger
}

func New(reg Membership, logger *zerolog.Logger) *Relay {
	return &Relay{
		reg:    reg,
		logger: logger.With().Str("component", "relay").Logger(),
	}
}

// Signal forwards a call-setup envelope to every member of its room except
// the sender. Malformed envelopes and envelopes for rooms with no other
// members are dropped; the protocol has no acknowledgement channel, so a
// drop is logged and nothing else happens.
func (rl *Relay) Signal(ctx context.Context, env model.Envelope, senderID uuid.UUID) {
	out, ok := outbound(env)
	if !ok {
		rl.logger.Debug().
			Str("event", env.Event).
			Str("src", senderID.String()).
			Msg("malformed signaling envelope dropped")
		return
	}
	if !rl.deliver(ctx, out, env.RoomID, senderID) {
		rl.logger.Debug().
			Str("event", env.Event).
			Str("roomID", env.RoomID).
			Str("src", senderID.String()).
			Msg("signaling envelope dropped, nowhere to forward")
	}
}

// Broadcast delivers the envelope to every current member of the room,
// the sender's own connections included.
func (rl *Relay) Broadcast(ctx context.Context, env model.Envelope, roomID string) {
	if !rl.deliverAll(ctx, env, roomID) {
		rl.logger.Debug().
			Str("event", env.Event).
			Str("roomID", roomID).
			Msg("broadcast did not reach anyone")
	}
}

// outbound validates the inbound envelope and strips it down to the frame
// re-emitted to peers. The room id never leaks to receivers.
func outbound(env model.Envelope) (model.Envelope, bool) {
	if env.RoomID == "" {
		return model.Envelope{}, false
	}
	switch env.Event {
	case model.EventOffer, model.EventAnswer:
		if env.SDP == "" {
			return model.Envelope{}, false
		}
		return model.Envelope{Event: env.Event, SDP: env.SDP}, true
	case model.EventICECandidate:
		if len(env.Candidate) == 0 {
			return model.Envelope{}, false
		}
		return model.Envelope{Event: env.Event, Candidate: env.Candidate}, true
	case model.EventCallEnded:
		return model.Envelope{Event: env.Event}, true
	}
	return model.Envelope{}, false
}

func (rl *Relay) deliver(ctx context.Context, env model.Envelope, roomID string, exclude uuid.UUID) bool {
	var sent bool
	for _, member := range rl.reg.MembersOf(roomID) {
		if member.ID == exclude {
			continue
		}
		ok, canceled := rl.send(ctx, env, member)
		if canceled {
			break
		}
		if ok {
			sent = true
		}
	}
	return sent
}

func (rl *Relay) deliverAll(ctx context.Context, env model.Envelope, roomID string) bool {
	var sent bool
	for _, member := range rl.reg.MembersOf(roomID) {
		ok, canceled := rl.send(ctx, env, member)
		if canceled {
			break
		}
		if ok {
			sent = true
		}
	}
	return sent
}

func (rl *Relay) send(ctx context.Context, env model.Envelope, member registry.Member) (bool, bool) {
	var sent, canceled bool
	tCh := time.NewTimer(defaultFwdTimeout)
	select {
	case <-ctx.Done():
		canceled = true
	case <-tCh.C:
		rl.logger.Error().
			Str("dst", member.ID.String()).
			Str("event", env.Event).
			Msg("dead endpoint")
	case member.Wire.TX <- env:
		rl.logger.Debug().
			Str("dst", member.ID.String()).
			Str("event", env.Event).
			Msg("envelope forwarded")
		sent = true
	}
	tCh.Stop()
	return sent, canceled
}

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"testing"

	"github.com/annel0/spacebobble/internal/scores"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnTaggedFrames(t *testing.T) {
	var buf bytes.Buffer
	c := NewConn(&buf, 0)

	require.NoError(t, c.Write(PlayerID{PlayerID: 3}))
	require.NoError(t, c.Write(TickEnvelope{
		Avatar: AvatarPacket{PlayerID: 3, X: 10, Y: 20, Health: 2},
		Saved:  []RescuablePacket{{ID: 4, Saved: true}},
	}))
	require.NoError(t, c.Write(FinalScore{Name: "amy", Team: scores.TeamRed, Total: 650}))

	p, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, PlayerID{PlayerID: 3}, p)

	p, err = c.Read()
	require.NoError(t, err)
	env, ok := p.(TickEnvelope)
	require.True(t, ok, "ожидался TickEnvelope, получен %T", p)
	assert.Equal(t, 2, env.Avatar.Health)
	assert.Len(t, env.Saved, 1)

	fs, err := Expect[FinalScore](c)
	require.NoError(t, err)
	assert.Equal(t, scores.Result{Name: "amy", Team: scores.TeamRed, Total: 650}, fs.Result())
}

func TestConnCompressesLargeFrames(t *testing.T) {
	var buf bytes.Buffer
	c := NewConn(&buf, 64)

	layout := LevelLayout{}
	for i := 0; i < 200; i++ {
		layout.Blocks = append(layout.Blocks, BlockPacket{Col: i % 50, Row: i / 50, Shape: ShapeSolid})
	}
	require.NoError(t, c.Write(layout))

	raw := buf.Bytes()
	assert.Equal(t, flagCompressed, raw[6]&flagCompressed, "флаг сжатия должен быть установлен")

	got, err := Expect[LevelLayout](c)
	require.NoError(t, err)
	assert.Equal(t, layout, got)
}

func TestConnRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header[0:4], MaxFrameSize+1)
	binary.BigEndian.PutUint16(header[4:6], uint16(KindTick))
	buf.Write(header)

	_, err := NewConn(&buf, 0).Read()
	assert.True(t, errors.Is(err, ErrFrameTooLarge))
}

func TestConnUnknownKind(t *testing.T) {
	var buf bytes.Buffer
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header[0:4], 2)
	binary.BigEndian.PutUint16(header[4:6], 999)
	buf.Write(header)
	buf.WriteString("{}")

	_, err := NewConn(&buf, 0).Read()
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestExpectWrongKind(t *testing.T) {
	var buf bytes.Buffer
	c := NewConn(&buf, 0)
	require.NoError(t, c.Write(Snapshot{}))

	_, err := Expect[PlayerID](c)
	assert.True(t, errors.Is(err, ErrUnexpected))
}

func TestConnOverPipe(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	done := make(chan error, 1)
	go func() {
		done <- NewConn(a, 0).Write(Snapshot{Avatars: []AvatarPacket{{PlayerID: 1}}, Finished: true})
	}()

	snap, err := Expect[Snapshot](NewConn(b, 0))
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.True(t, snap.Finished)
	assert.Nil(t, snap.Leaderboard)
}

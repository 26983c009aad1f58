package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeShapes(t *testing.T) {
	tests := []struct {
		name string
		env  *Envelope
		want string
	}{
		{"value", EncodeValue([]string{".", "sub"}, nil), `{"ok":true,"data":[".","sub"]}`},
		{"nil remote", EncodeValue[*string](nil, nil), `{"ok":true,"data":null}`},
		{"unit", EncodeUnit(nil), `{"ok":true}`},
		{"passthrough", EncodePassthrough(json.RawMessage(`{"branchName":"main"}`), nil), `{"ok":true,"data":{"branchName":"main"}}`},
		{"empty passthrough", EncodePassthrough(nil, nil), `{"ok":true,"data":null}`},
		{"failure", EncodeUnit(errors.New("nothing to commit")), `{"ok":false,"error":"nothing to commit"}`},
		{"value failure", EncodeValue(42, errors.New("boom")), `{"ok":false,"error":"boom"}`},
		{"empty message", EncodeFailure(errors.New("")), `{"ok":false,"error":"unknown error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.env.Validate())
			raw, err := json.Marshal(tt.env)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestEncodeValueUnencodable(t *testing.T) {
	env := EncodeValue(make(chan int), nil)
	assert.False(t, env.OK)
	assert.Contains(t, env.Error, "encoding result")
}

func TestEnvelopeValidate(t *testing.T) {
	assert.Error(t, (&Envelope{OK: true, Error: "x"}).Validate())
	assert.Error(t, (&Envelope{OK: false}).Validate())
	assert.Error(t, (&Envelope{OK: false, Error: "x", Data: json.RawMessage(`1`)}).Validate())
	assert.NoError(t, (&Envelope{OK: true}).Validate())
}

func TestDecodeData(t *testing.T) {
	roots, err := DecodeData[[]string](EncodeValue([]string{"."}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"."}, roots)

	remote, err := DecodeData[*string](EncodeValue[*string](nil, nil))
	require.NoError(t, err)
	assert.Nil(t, remote)

	n, err := DecodeData[int](EncodeUnit(nil))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDecodeDataHandlerFailure(t *testing.T) {
	_, err := DecodeData[[]string](EncodeFailure(errors.New("workspace not found")))
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "workspace not found", re.Message)
	assert.Equal(t, "workspace not found", err.Error())
}

func TestDecodeDataMismatch(t *testing.T) {
	_, err := DecodeData[[]string](&Envelope{OK: true, Data: json.RawMessage(`{"not":"a list"}`)})
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.True(t, de.Result)

	_, err = DecodeData[int](nil)
	require.ErrorAs(t, err, &de)

	_, err = DecodeData[int](&Envelope{OK: true, Error: "mixed"})
	require.ErrorAs(t, err, &de)
}

func TestEnvelopeRoundTripThroughFrame(t *testing.T) {
	frame := ResponseFrame{Type: FrameTypeResponse, ID: "1", Envelope: *EncodeValue(map[string]int{"total": 3}, nil)}
	raw, err := json.Marshal(frame)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"res","id":"1","ok":true,"data":{"total":3}}`, string(raw))

	parsed, err := ParseFrame(raw)
	require.NoError(t, err)
	res, ok := parsed.(*ResponseFrame)
	require.True(t, ok)
	got, err := DecodeData[map[string]int](&res.Envelope)
	require.NoError(t, err)
	assert.Equal(t, 3, got["total"])
}

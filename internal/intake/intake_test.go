package intake

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/fields"
)

func TestDecodeShapes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		shape Shape
		want  map[string]string
	}{
		{
			name:  "flat",
			body:  `{"Business Legal Name":"Acme LLC","Employees":12}`,
			shape: ShapeFlat,
			want:  map[string]string{"Business Legal Name": "Acme LLC", "Employees": "12"},
		},
		{
			name:  "questions",
			body:  `{"questions":[{"name":"Business Legal Name","value":"Acme"},{"question":"Email","answer":"a@b.co"}],"lead_id":"L1"}`,
			shape: ShapeQuestions,
			want:  map[string]string{"Business Legal Name": "Acme", "Email": "a@b.co", "lead_id": "L1"},
		},
		{
			name:  "data",
			body:  `{"data":[{"label":"City","response":"Austin"},{"key":"zip","value":"78701"}]}`,
			shape: ShapeData,
			want:  map[string]string{"City": "Austin", "zip": "78701"},
		},
		{
			name:  "responses",
			body:  `{"responses":[{"title":"Tags","value":["a","b"]}]}`,
			shape: ShapeResponses,
			want:  map[string]string{"Tags": "a, b"},
		},
		{
			name:  "top level list",
			body:  `[{"name":"Business Legal Name","value":"Acme"}]`,
			shape: ShapeData,
			want:  map[string]string{"Business Legal Name": "Acme"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.shape, p.Shape)

			got := map[string]string{}
			for k, v := range p.Raw() {
				got[k] = fields.Stringify(v)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeNestedWidgets(t *testing.T) {
	p, err := Decode([]byte(`{"questions":[
		{"name":"Business Address","value":{"addr_line1":"1 Main St","city":"Austin","state":"TX","postal":"78701"}},
		{"name":"Signer Name","value":{"first":"Jane","last":"Doe"}}
	]}`))
	require.NoError(t, err)
	raw := p.Raw()
	assert.Equal(t, "1 Main St\nAustin, TX 78701", fields.Stringify(raw["Business Address"]))
	assert.Equal(t, "Jane Doe", fields.Stringify(raw["Signer Name"]))
}

func TestRawEmptyItemKeepsValue(t *testing.T) {
	p, err := Decode([]byte(`{"questions":[{"name":"Email","value":"a@b.co"},{"name":"Email","value":"unanswered"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", p.Raw()["Email"])
}

func TestDecodeMalformed(t *testing.T) {
	for _, body := range []string{"", "   ", "{", `"text"`, "42"} {
		_, err := Decode([]byte(body))
		assert.ErrorIs(t, err, ErrMalformed, body)
	}
}

func TestDecodeRequestJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"b"}`))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	p, err := DecodeRequest(r, 0)
	require.NoError(t, err)
	assert.Equal(t, "b", p.Raw()["a"])
}

func TestDecodeRequestRawRequestField(t *testing.T) {
	raw, err := json.Marshal(map[string]any{"q3_businessName": "Acme"})
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("formID", "123"))
	require.NoError(t, mw.WriteField("rawRequest", string(raw)))
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	p, err := DecodeRequest(r, 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"q3_businessName": "Acme"}, map[string]any(p.Raw()))
}

func TestDecodeRequestURLEncoded(t *testing.T) {
	form := url.Values{"Business Legal Name": {"Acme"}, "Tags": {"a", "b"}}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	p, err := DecodeRequest(r, 0)
	require.NoError(t, err)

	raw := p.Raw()
	assert.Equal(t, "Acme", raw["Business Legal Name"])
	assert.Equal(t, "a, b", fields.Stringify(raw["Tags"]))
}

func TestDecodeRequestTooLarge(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"`+strings.Repeat("x", 100)+`"}`))
	_, err := DecodeRequest(r, 10)
	assert.ErrorIs(t, err, ErrMalformed)
}

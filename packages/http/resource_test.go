package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAnimalServer mirrors a small JSON API: it echoes methods, headers,
// query parameters and posted JSON bodies back to the caller.
func newAnimalServer(t *testing.T) *httptest.Server {
	t.Helper()

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			switch r.URL.Path {
			case "/food.json":
				writeJSON(w, map[string]string{"pizza": "delicious"})
			case "/animal":
				var body struct {
					Name string `json:"name"`
				}
				_ = json.NewDecoder(r.Body).Decode(&body)
				writeJSON(w, map[string]string{"name": body.Name})
			default:
				writeJSON(w, map[string]string{"method": "POST"})
			}
		case http.MethodGet:
			switch r.URL.Path {
			case "/txt":
				_, _ = io.WriteString(w, "plaintext")
			case "/headers":
				headers := make(map[string]string)
				for k := range r.Header {
					headers[strings.ToLower(k)] = r.Header.Get(k)
				}
				writeJSON(w, headers)
			case "/index.html":
				_, _ = io.WriteString(w, "<html><body><p>hi</p></body></html>")
			case "/animal":
				writeJSON(w, map[string]string{"name": r.URL.Query().Get("name")})
			case "/query":
				writeJSON(w, r.URL.Query())
			case "/bytes":
				_, _ = w.Write([]byte{0x00, 0x01, 0x02})
			default:
				writeJSON(w, map[string]string{"method": "GET"})
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func dataMap(t *testing.T, resp *Response) map[string]any {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "expected JSON object data, got %T", resp.Data)
	return data
}

func TestResource_PlainTextByDefault(t *testing.T) {
	server := newAnimalServer(t)

	resp, err := New(server.URL + "/txt").Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "plaintext", resp.Data)
}

func TestResource_JSONAutoParse(t *testing.T) {
	server := newAnimalServer(t)

	resp, err := New(server.URL+"/", Init{JSON: Bool(true)}).Get(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "GET", dataMap(t, resp)["method"])
}

func TestResource_JSONAutoParseWithAcceptHeader(t *testing.T) {
	server := newAnimalServer(t)

	api := New(server.URL+"/", Init{Headers: map[string]string{"Accept": "application/json"}})
	resp, err := api.Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "GET", dataMap(t, resp)["method"])
}

func TestResource_UnknownAcceptIsText(t *testing.T) {
	server := newAnimalServer(t)

	api := New(server.URL+"/index.html", Init{Headers: map[string]string{"Accept": "text/html"}})
	resp, err := api.Fetch(context.Background())

	require.NoError(t, err)
	text, ok := resp.Data.(string)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(text, "</html>"))
}

func TestResource_OctetStreamIsBytes(t *testing.T) {
	server := newAnimalServer(t)

	api := New(server.URL+"/bytes", Init{Headers: map[string]string{"Accept": MIMEOctetStream}})
	resp, err := api.Get(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0x02}, resp.Data)
}

func TestResource_ParseBodyDisabled(t *testing.T) {
	server := newAnimalServer(t)

	api := New(server.URL, Init{JSON: Bool(true)})
	resp, err := api.Get(context.Background(), Init{JSON: Bool(false), ParseBody: Bool(false)})

	require.NoError(t, err)
	assert.Nil(t, resp.Data)
	assert.Contains(t, resp.BodyString(), "GET")
}

func TestResource_FromURL(t *testing.T) {
	server := newAnimalServer(t)

	u, err := neturl.Parse(server.URL + "/index.html")
	require.NoError(t, err)

	resp, err := NewFromURL(u).Fetch(context.Background())

	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(resp.Data.(string), "</html>"))
}

func TestResource_FromRequest(t *testing.T) {
	server := newAnimalServer(t)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/txt", nil)
	require.NoError(t, err)

	api := NewFromRequest(req)
	assert.Equal(t, server.URL+"/txt", api.URL())

	resp, err := api.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "plaintext", resp.Data)
}

func TestResource_NotFoundIsReturned(t *testing.T) {
	server := newAnimalServer(t)

	resp, err := New(server.URL+"/index.html", Init{Method: "PATCH"}).Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestResource_DeriveSubresource(t *testing.T) {
	server := newAnimalServer(t)

	page := New(server.URL).Derive("index.html")
	resp, err := page.Fetch(context.Background())

	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(resp.Data.(string), "</html>"))
}

func TestResource_DeriveWithMethod(t *testing.T) {
	server := newAnimalServer(t)

	api := New(server.URL, Init{Headers: map[string]string{"Accept": "application/json"}})
	food := api.Derive("food.json", Init{Method: "POST"})
	resp, err := food.Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "delicious", dataMap(t, resp)["pizza"])
}

func TestResource_Scenarios(t *testing.T) {
	server := newAnimalServer(t)

	t.Run("json get on root", func(t *testing.T) {
		resp, err := New(server.URL+"/", Init{JSON: Bool(true)}).Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "GET", dataMap(t, resp)["method"])
	})

	t.Run("chained derivation", func(t *testing.T) {
		r := New("http://h").Derive("a").Derive("b")
		assert.Equal(t, "http://h/a/b", r.URL())
	})

	t.Run("query on derived resource", func(t *testing.T) {
		api := New(server.URL, Init{JSON: Bool(true)})
		animal := api.Derive("animal", Init{Query: map[string]string{"name": "dog"}})
		resp, err := animal.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "dog", dataMap(t, resp)["name"])
	})

	t.Run("json body on derived resource", func(t *testing.T) {
		api := New(server.URL, Init{JSON: Bool(true)})
		animal := api.Derive("animal", Init{Method: "POST", JSONBody: map[string]string{"name": "dog"}})
		resp, err := animal.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "dog", dataMap(t, resp)["name"])
	})

	t.Run("call overlay does not touch resource", func(t *testing.T) {
		u, err := neturl.Parse(server.URL + "/headers")
		require.NoError(t, err)

		api := NewFromURL(u, Init{
			JSON:    Bool(true),
			Headers: map[string]string{"X-Shenanigans": "None"},
		})

		resp, err := api.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "None", dataMap(t, resp)["x-shenanigans"])

		resp, err = api.Fetch(context.Background(), Init{Headers: map[string]string{"X-Shenanigans": "Some"}})
		require.NoError(t, err)
		assert.Equal(t, "Some", dataMap(t, resp)["x-shenanigans"])

		assert.Equal(t, "None", api.Init().Header("X-Shenanigans"))
		resp, err = api.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "None", dataMap(t, resp)["x-shenanigans"])
	})
}

func TestResource_FetchURLKeepsInit(t *testing.T) {
	server := newAnimalServer(t)

	api := New(server.URL, Init{
		JSON:    Bool(true),
		Headers: map[string]string{"X-Shenanigans": "None"},
	})
	resp, err := api.FetchURL(context.Background(), server.URL+"/headers")

	require.NoError(t, err)
	data := dataMap(t, resp)
	assert.Equal(t, "None", data["x-shenanigans"])
	assert.Equal(t, "application/json", data["accept"])
}

func TestResource_PostJSONBody(t *testing.T) {
	server := newAnimalServer(t)

	animal := New(server.URL, Init{JSON: Bool(true)}).Derive("animal")
	resp, err := animal.Post(context.Background(), Init{JSONBody: map[string]string{"name": "dog"}})

	require.NoError(t, err)
	assert.Equal(t, "dog", dataMap(t, resp)["name"])
	assert.Equal(t, http.MethodPost, resp.Method)
}

func TestResource_JSONBodyWinsOverBody(t *testing.T) {
	server := newAnimalServer(t)

	animal := New(server.URL, Init{JSON: Bool(true), Body: []byte(`{"name":"cat"}`)}).Derive("animal")
	resp, err := animal.Post(context.Background(), Init{JSONBody: map[string]string{"name": "dog"}})

	require.NoError(t, err)
	assert.Equal(t, "dog", dataMap(t, resp)["name"])
}

func TestResource_VerbOverridesOverlayMethod(t *testing.T) {
	server := newAnimalServer(t)

	api := New(server.URL, Init{JSON: Bool(true), Method: "POST"})
	resp, err := api.Get(context.Background(), Init{Method: "POST"})

	require.NoError(t, err)
	assert.Equal(t, "GET", dataMap(t, resp)["method"])
}

func TestResource_ConfigInheritance(t *testing.T) {
	parent := New("http://h", Init{
		Method:  "PUT",
		Headers: map[string]string{"B": "2", "Shared": "parent"},
	})

	child := parent.Derive("x", Init{
		Method:    "POST",
		Headers:   map[string]string{"A": "1", "shared": "child"},
		ParseBody: Bool(false),
	})

	assert.Equal(t, map[string]string{"A": "1", "B": "2", "Shared": "child"}, child.Init().Headers)
	assert.Equal(t, "POST", child.Init().Method)
	assert.False(t, *child.Init().ParseBody)
	assert.False(t, *child.Init().JSON)

	assert.Equal(t, map[string]string{"B": "2", "Shared": "parent"}, parent.Init().Headers)
	assert.Equal(t, "PUT", parent.Init().Method)
	assert.True(t, *parent.Init().ParseBody)
	assert.Equal(t, "http://h", parent.URL())
}

func TestResource_InitAccessorReturnsCopy(t *testing.T) {
	api := New("http://h", Init{Headers: map[string]string{"X-Key": "v"}})

	cfg := api.Init()
	cfg.Headers["X-Key"] = "changed"
	*cfg.ParseBody = false

	assert.Equal(t, "v", api.Init().Header("x-key"))
	assert.True(t, *api.Init().ParseBody)

	t.Run("query and body", func(t *testing.T) {
		child := New("http://h", Init{
			Query:    neturl.Values{"a": {"1"}},
			Body:     []byte("abc"),
			JSONBody: map[string]any{"tags": []any{"x"}},
		}).Derive("things")

		cfg := child.Init()
		cfg.Query.(neturl.Values).Set("a", "changed")
		cfg.Body[0] = 'Z'
		cfg.JSONBody.(map[string]any)["tags"].([]any)[0] = "y"

		encoded, err := EncodeQuery(child.Init().Query)
		require.NoError(t, err)
		assert.Equal(t, "a=1", encoded)
		assert.Equal(t, []byte("abc"), child.Init().Body)
		assert.Equal(t, map[string]any{"tags": []any{"x"}}, child.Init().JSONBody)
	})
}

func TestResource_CallerValuesAreCopied(t *testing.T) {
	query := neturl.Values{"a": {"1"}}
	body := []byte("abc")
	headers := map[string]string{"X-Key": "v"}

	root := New("http://h", Init{Query: query, Body: body, Headers: headers})
	overlay := map[string]string{"b": "2"}
	child := root.Derive("things", Init{Query: overlay})

	query.Set("a", "changed")
	body[0] = 'Z'
	headers["X-Key"] = "changed"
	overlay["b"] = "changed"

	encoded, err := EncodeQuery(root.Init().Query)
	require.NoError(t, err)
	assert.Equal(t, "a=1", encoded)
	assert.Equal(t, []byte("abc"), root.Init().Body)
	assert.Equal(t, "v", root.Init().Header("X-Key"))

	encoded, err = EncodeQuery(child.Init().Query)
	require.NoError(t, err)
	assert.Equal(t, "b=2", encoded)
}

func TestResource_EmptyDeriveKeepsURL(t *testing.T) {
	tests := []string{"http://h", "http://h/", "http://h/a/b", "https://h:8443/api/"}

	for _, base := range tests {
		t.Run(base, func(t *testing.T) {
			derived := New(base).Derive("").URL()
			assert.Equal(t, strings.TrimSuffix(base, "/"), strings.TrimSuffix(derived, "/"))
		})
	}
}

func TestResource_QueryMergesWithExistingQuery(t *testing.T) {
	server := newAnimalServer(t)

	api := New(server.URL, Init{JSON: Bool(true)}).Derive("query?a=1&b=2")
	resp, err := api.Get(context.Background(), Init{Query: neturl.Values{"c": {"3"}, "d": {"4"}}})

	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(resp.URL, "?"))
	assert.Equal(t, map[string]any{
		"a": []any{"1"},
		"b": []any{"2"},
		"c": []any{"3"},
		"d": []any{"4"},
	}, resp.Data)
}

func TestResource_QueryForms(t *testing.T) {
	server := newAnimalServer(t)
	api := New(server.URL, Init{JSON: Bool(true)}).Derive("animal")

	type animalQuery struct {
		Name string `schema:"name"`
	}

	tests := []struct {
		name  string
		query any
	}{
		{name: "string map", query: map[string]string{"name": "dog"}},
		{name: "values", query: neturl.Values{"name": {"dog"}}},
		{name: "encoded string", query: "?name=dog"},
		{name: "any map", query: map[string]any{"name": "dog"}},
		{name: "struct", query: animalQuery{Name: "dog"}},
		{name: "struct pointer", query: &animalQuery{Name: "dog"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := api.Get(context.Background(), Init{Query: tt.query})
			require.NoError(t, err)
			assert.Equal(t, "dog", dataMap(t, resp)["name"])
		})
	}
}

func TestResource_InvalidQuery(t *testing.T) {
	_, err := New("http://example.invalid").Get(context.Background(), Init{Query: 42})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestResource_JSONFlagForcesParse(t *testing.T) {
	server := newAnimalServer(t)

	api := New(server.URL+"/headers", Init{ParseBody: Bool(false), JSON: Bool(true)})
	resp, err := api.Get(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "application/json", dataMap(t, resp)["accept"])
}

func TestResource_ParseFailureIsNonFatal(t *testing.T) {
	server := newAnimalServer(t)

	resp, err := New(server.URL+"/txt", Init{JSON: Bool(true)}).Get(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Nil(t, resp.Data)
	assert.Equal(t, "plaintext", resp.BodyString())
}

func TestResource_ConcurrentUse(t *testing.T) {
	server := newAnimalServer(t)
	api := New(server.URL, Init{JSON: Bool(true), Headers: map[string]string{"X-Base": "1"}})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			animal := api.Derive("animal", Init{Headers: map[string]string{"X-Child": "1"}})
			resp, err := animal.Get(context.Background(), Init{Query: map[string]string{"name": "dog"}})
			if assert.NoError(t, err) {
				assert.Equal(t, "dog", resp.Get("name").String())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, map[string]string{"X-Base": "1"}, api.Init().Headers)
}

func TestResponse_ValidateSchema(t *testing.T) {
	resp := &Response{Body: []byte(`{"name": "dog", "legs": 4}`)}

	schema := []byte(`{
		"type": "object",
		"required": ["name", "legs"],
		"properties": {
			"name": {"type": "string"},
			"legs": {"type": "integer"}
		}
	}`)
	assert.NoError(t, resp.ValidateSchema(schema))

	strict := []byte(`{"type": "object", "required": ["wings"]}`)
	err := resp.ValidateSchema(strict)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "wings")
}

func TestResponse_JSON(t *testing.T) {
	resp := &Response{Body: []byte(`{"name": "dog"}`)}

	var animal struct {
		Name string `json:"name"`
	}
	require.NoError(t, resp.JSON(&animal))
	assert.Equal(t, "dog", animal.Name)
}

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brunobiangulo/docgraph"
	"github.com/brunobiangulo/docgraph/graph"
)

func TestDecodeTriplets(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"bare array", `[{"subject":"Alice","predicate":"FOUNDED","object":"Acme"}]`, 1, false},
		{"wrapped", `{"triplets":[{"subject":"a","predicate":"b","object":"c"},{"subject":"d","predicate":"e","object":"f"}]}`, 2, false},
		{"upload response", `{"success":true,"extracted_triplets":[{"subject":"a","predicate":"b","object":"c"}]}`, 1, false},
		{"empty array", `[]`, 0, true},
		{"empty object", `{}`, 0, true},
		{"not json", `nope`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeTriplets(strings.NewReader(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeTriplets: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d triplets, want %d", len(got), tt.want)
			}
		})
	}

	_, err := decodeTriplets(strings.NewReader(`[]`))
	if !errors.Is(err, docgraph.ErrMissingInput) {
		t.Errorf("empty input error = %v, want ErrMissingInput", err)
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	in := []graph.Triplet{{Subject: "Alice", Predicate: "FOUNDED", Object: "Acme"}}
	if err := writeJSON(nil, path, in); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out []graph.Triplet
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Errorf("round trip = %+v", out)
	}

	var buf bytes.Buffer
	if err := writeJSON(&buf, "-", in); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"subject": "Alice"`) {
		t.Errorf("stdout output = %q", buf.String())
	}
}

// fakeLLM answers extraction prompts with one triplet and anything else
// with a fixed answer, in the OpenAI chat-completions format.
func fakeLLM(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		reply := "Alice founded Acme."
		if len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, "JSON array") {
			reply = `[{"subject":"Alice","predicate":"FOUNDED","object":"Acme"}]`
		}
		b, _ := json.Marshal(reply)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"model":"fake","choices":[{"message":{"role":"assistant","content":%s},"finish_reason":"stop"}]}`, b)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docgraph.yaml")
	cfg := fmt.Sprintf(`
extraction:
  provider: custom
  model: fake-extract
  base_url: %[1]s
  api_key: sk-secret
  temperature: 0.2
answering:
  provider: custom
  model: fake-answer
  base_url: %[1]s
  temperature: 0.5
graph:
  backend: memory
`, baseURL)
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errb bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errb)
	rootCmd.SetIn(strings.NewReader(stdin))
	err = rootCmd.Execute()
	return out.String(), errb.String(), err
}

func TestCommands(t *testing.T) {
	srv := fakeLLM(t)
	cfgPath := writeTestConfig(t, srv.URL)

	dir := t.TempDir()
	doc := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(doc, []byte("Alice founded Acme."), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("config show", func(t *testing.T) {
		out, _, err := execute(t, "", "config", "show", "--config", cfgPath)
		if err != nil {
			t.Fatalf("config show: %v", err)
		}
		if !strings.Contains(out, "provider: custom") || !strings.Contains(out, "fake-extract") {
			t.Errorf("config output missing settings:\n%s", out)
		}
		if strings.Contains(out, "sk-secret") {
			t.Error("config show leaked the API key")
		}
	})

	t.Run("ingest", func(t *testing.T) {
		triplets := filepath.Join(dir, "triplets.json")
		_, errOut, err := execute(t, "", "ingest", doc, "--config", cfgPath, "--out", triplets, "--commit")
		if err != nil {
			t.Fatalf("ingest: %v\n%s", err, errOut)
		}
		if !strings.Contains(errOut, "1 triplets") || !strings.Contains(errOut, "committed 1 of 1") {
			t.Errorf("ingest summary:\n%s", errOut)
		}
		data, err := os.ReadFile(triplets)
		if err != nil {
			t.Fatal(err)
		}
		got, err := decodeTriplets(bytes.NewReader(data))
		if err != nil || len(got) != 1 || got[0].Subject != "Alice" {
			t.Errorf("triplet file = %s (%v)", data, err)
		}

		out, _, err := execute(t, "", "commit", triplets, "--config", cfgPath)
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
		if !strings.Contains(out, "committed 1 of 1") {
			t.Errorf("commit output = %q", out)
		}
	})

	t.Run("ask", func(t *testing.T) {
		out, _, err := execute(t, "", "ask", "--config", cfgPath, "--doc", doc, "Who", "founded", "Acme?")
		if err != nil {
			t.Fatalf("ask: %v", err)
		}
		if strings.TrimSpace(out) != "Alice founded Acme." {
			t.Errorf("answer = %q", out)
		}
	})

	t.Run("chat", func(t *testing.T) {
		out, _, err := execute(t, "Who founded Acme?\nexit\n", "chat", "--config", cfgPath, "--doc", doc)
		if err != nil {
			t.Fatalf("chat: %v", err)
		}
		if !strings.Contains(out, "Loaded notes.txt") || strings.Count(out, "Alice founded Acme.") != 1 {
			t.Errorf("chat transcript:\n%s", out)
		}
	})

	t.Run("stats", func(t *testing.T) {
		out, _, err := execute(t, "", "stats", "--config", cfgPath, "--backend", "memory")
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if !strings.Contains(out, "entities:  0") {
			t.Errorf("stats output = %q", out)
		}
	})

	t.Run("export", func(t *testing.T) {
		out, _, err := execute(t, "", "export", "--config", cfgPath)
		if err != nil {
			t.Fatalf("export: %v", err)
		}
		if !strings.Contains(out, `"nodes"`) || !strings.Contains(out, `"edges"`) {
			t.Errorf("export output = %q", out)
		}
	})

	t.Run("clear requires confirmation", func(t *testing.T) {
		if _, _, err := execute(t, "", "clear", "--config", cfgPath); err == nil {
			t.Error("clear without --yes should fail")
		}
		out, _, err := execute(t, "", "clear", "--config", cfgPath, "--yes")
		if err != nil || !strings.Contains(out, "graph cleared") {
			t.Errorf("clear --yes = %q, %v", out, err)
		}
	})

	t.Run("unsupported document", func(t *testing.T) {
		bad := filepath.Join(dir, "image.png")
		os.WriteFile(bad, []byte{0x89, 'P', 'N', 'G'}, 0o644)
		_, _, err := execute(t, "", "ingest", bad, "--config", cfgPath, "--out", "")
		if !errors.Is(err, docgraph.ErrUnsupportedFormat) {
			t.Errorf("error = %v, want ErrUnsupportedFormat", err)
		}
	})
}

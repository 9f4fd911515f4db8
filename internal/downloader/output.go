package downloader

import (
	"encoding/json"
	"io"
	"sync"
)

type jsonEvent struct {
	Type       string `json:"type"`
	Task       string `json:"task"`
	Event      string `json:"event"`
	Downloaded int64  `json:"downloaded"`
	Expected   int64  `json:"expected"`
	Error      string `json:"error,omitempty"`
}

type jsonResult struct {
	Type     string `json:"type"`
	Status   string `json:"status"`
	URL      string `json:"url,omitempty"`
	ID       string `json:"id,omitempty"`
	Title    string `json:"title,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Output   string `json:"output,omitempty"`
	Bytes    int64  `json:"bytes,omitempty"`
	Category string `json:"category,omitempty"`
	Error    string `json:"error,omitempty"`
}

// jsonSink writes one JSON object per event (NDJSON).
type jsonSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newJSONSink(w io.Writer) *jsonSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &jsonSink{enc: enc}
}

func (s *jsonSink) Handle(e Event) {
	ev := jsonEvent{
		Type:       "progress",
		Task:       e.Task,
		Event:      string(e.Kind),
		Downloaded: e.Downloaded,
		Expected:   e.Expected,
	}
	if e.Err != nil {
		ev.Error = e.Err.Error()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(ev)
}

// WriteJSONResult writes the final outcome of a request as one JSON line.
func WriteJSONResult(w io.Writer, url string, res Result, err error) error {
	out := jsonResult{
		Type:   "result",
		Status: "ok",
		URL:    url,
		ID:     res.ID,
		Title:  res.Title,
		Output: res.Artifact.Path,
		Bytes:  res.Artifact.Bytes,
	}
	if res.Artifact.Mode != 0 {
		out.Mode = res.Artifact.Mode.String()
	}
	if err != nil {
		out.Status = "error"
		out.Output = ""
		out.Bytes = 0
		out.Category = string(CategoryOf(err))
		out.Error = err.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

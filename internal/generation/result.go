package generation

import "time"

// Response è la risposta di un singolo modello
type Response struct {
	Model      string        `json:"model"`
	Text       string        `json:"response"`
	Tokens     int           `json:"tokens"`
	Confidence float64       `json:"confidence"`
	Latency    time.Duration `json:"latency"`
}

// Result è il risultato di Generate
type Result struct {
	Response     string        `json:"response"`
	Model        string        `json:"model"`
	Tokens       int           `json:"tokens"`
	Confidence   float64       `json:"confidence"`
	Alternatives []Response    `json:"alternatives,omitempty"`
	Consensus    float64       `json:"consensus"`
	Attempts     int           `json:"attempts"`
	Cached       bool          `json:"cached"`
	Latency      time.Duration `json:"latency"`
}

func single(r Response) *Result {
	return &Result{
		Response:   r.Text,
		Model:      r.Model,
		Tokens:     r.Tokens,
		Confidence: r.Confidence,
		Consensus:  1.0,
	}
}

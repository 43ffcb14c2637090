// Package agents contiene il catalogo degli agenti specializzati e
// l'esecuzione di un singolo agente sul motore di generazione.
//
// Un agente è un system prompt fisso legato a un modello, una temperatura
// e un limite di token. RunAgent costruisce il prompt utente dal template
// dell'agente, invoca il motore e interpreta la risposta JSON nel payload
// tipizzato previsto dal tipo di agente:
//
//	reg, _ := agents.DefaultRegistry()
//	runner := agents.NewRunner(reg, engine, agents.WithLog(execLog))
//
//	res, err := runner.RunAgent(ctx, "security-analyzer", code, agents.RunOptions{
//	    Language: "go",
//	})
//	if err != nil {
//	    return err
//	}
//	for _, f := range res.Result.Payload.Findings() {
//	    fmt.Println(f.Severity, f.Text())
//	}
package agents

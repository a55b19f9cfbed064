// Package replshim runs code in persistent R, Ruby and shell interpreters
// and streams their output back as it is produced.
//
// # Overview
//
// Each language gets one long-lived interpreter subprocess per session.
// Snippets are written to its stdin followed by a command that prints an end
// marker; output is relayed line by line until the marker appears, so
// variables and definitions carry over from one snippet to the next.
//
// # Basic Usage
//
//	session := executor.NewSession(executor.NewRegistry(r.New(), ruby.New()))
//	defer session.Close()
//
//	session.Run(ctx, executor.Request{Language: "ruby", Code: `x = 42`})
//	result := session.Run(ctx, executor.Request{Language: "ruby", Code: `puts x`})
//	fmt.Print(result.Output) // 42
//
// # Streaming
//
//	for ev := range session.Stream(ctx, executor.Request{Language: "r", Code: code}) {
//	    if ev.Kind == executor.EventOutput {
//	        fmt.Println(ev.Text)
//	    }
//	}
//
// See the [executor], [language/r], [language/ruby] and [language/shell]
// packages for detailed API documentation. The replshim command in
// cmd/replshim wraps a session in a CLI, a REPL and an HTTP server.
package replshim

// Package executor runs code in persistent interpreter subprocesses and
// streams their output back line by line.
//
// # Overview
//
// A Session owns at most one interpreter process per language. The first
// run of a language starts its interpreter; later runs reuse it, so state
// persists between runs. Code is written to the interpreter's stdin with a
// trailer that prints an end marker, and the output of both streams is
// relayed as events until the marker is seen. Adapters that also print the
// marker on stderr keep a run open until both streams reached it.
//
// # Basic Usage
//
//	registry := executor.NewRegistry(ruby.New(), r.New())
//	session := executor.NewSession(registry)
//	defer session.Close()
//
//	for ev := range session.Stream(ctx, executor.Request{Language: "ruby", Code: `puts "hi"`}) {
//	    switch ev.Kind {
//	    case executor.EventOutput:
//	        fmt.Println(ev.Text)
//	    case executor.EventError:
//	        log.Print(ev.Err)
//	    }
//	}
//
// Run collects the same events into a Result:
//
//	result := session.Run(ctx, executor.Request{Language: "r", Code: `x <- 42`})
//	result = session.Run(ctx, executor.Request{Language: "r", Code: `cat(x, "\n")`})
//	fmt.Print(result.Output) // 42
//
// # Failures
//
// Every run ends with exactly one EventEnd or EventError. An interpreter
// that cannot start yields an error wrapping ErrSpawn; one that dies
// mid-run yields ErrProcessExited. Nothing is retried: the next run starts
// a fresh interpreter.
//
// # Language Interface
//
// To add support for a new language, implement the [Language] interface,
// usually by embedding [Base]. See
// [github.com/caffeineduck/replshim/language/ruby] for an example.
package executor

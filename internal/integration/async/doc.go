// Package async runs external commands without blocking and collects their
// output into a Result that fills in as the command runs.
//
// A Caller starts every command through a process.Supervisor:
//
//	caller := async.NewCaller(supervisor, async.WithDir(root))
//	r, err := caller.SystemAsync([]string{"git", "status", "--porcelain"}, async.Options{
//		SplitLines: true,
//	})
//	if err != nil {
//		return err
//	}
//	if async.Wait(r, 2*time.Second) {
//		fmt.Println(r.ExitCode(), r.Output())
//	}
//
// # Output
//
// By default every chunk read from the process is one element of Output.
// With SplitLines the chunks are cut into lines; "\r\n", "\n" and a lone "\r"
// terminate a line and a trailing line without terminator is dropped. With
// MergeOutput all stdout elements collapse into one when the command exits.
// ErrOutput is never merged.
//
// # Waiting
//
// Wait, WaitFor and WaitAll block the calling goroutine only. Results are
// updated from the job's callback goroutine, so waiting never stalls output
// collection. A timeout of 0 checks once; a negative timeout has no limit.
//
// # Cancellation
//
// Cancel closes the job's streams and marks the result cancelled. Waiters
// wake up immediately and report the result as not done.
package async

// Package process provides external process management for the git layer.
//
// A Job wraps one external process: it spawns it with an argument list and
// environment overrides, wires its stdin, stdout and stderr to pipes, and
// reports output chunks and the exit status through callbacks.
//
// # Features
//
//   - Spawn with environment merged onto the inherited one
//   - Chunked stdout/stderr delivery with an end-of-stream call
//   - Half-close of stdin after a single Send
//   - Idempotent Stop of all streams
//   - Exit code and terminating signal tracking
//
// # Jobs
//
//	job := process.NewJob("", "diff", process.Spec{
//	    Command: "git",
//	    Args:    []string{"diff", "--cached", "--quiet"},
//	    OnStdout: func(data []byte, err error) {
//	        if data == nil {
//	            return // end of stream
//	        }
//	        fmt.Print(string(data))
//	    },
//	    OnExit: func(code int, sig syscall.Signal) {
//	        fmt.Println("exit", code)
//	    },
//	})
//	_ = job.Start()
//	<-job.Done()
//
// A process that cannot be spawned does not make Start fail: the job
// terminates with ExitSpawnFailed and OnExit fires like for any other exit.
//
// # Callback ordering
//
// All callbacks of one Job run on a single dispatch goroutine. Chunks of one
// stream arrive in the order the OS delivered them, and OnExit fires after
// both streams have reported their end, so the output observed by OnExit is
// final.
//
// # Supervisor
//
// The Supervisor starts jobs under generated IDs, keeps exited jobs
// retrievable for a retention period and terminates everything on Shutdown:
//
//	supervisor := process.NewSupervisor()
//	defer supervisor.Shutdown(5 * time.Second)
//
//	job, err := supervisor.Start("status", process.Spec{Command: "git", Args: []string{"status"}})
//
// # Thread Safety
//
// Both Supervisor and Job are safe for concurrent use.
package process

// Package lua runs gitbuf scripts in a sandboxed gopher-lua state.
//
// Scripts reach the async call API and the commit rendezvous through the
// preloaded "git" module:
//
//	local git = require("git")
//
//	local r = git.system_async("git status --short", {split_lines = true})
//	if git.wait(r, 1000) then
//	    for _, line in ipairs(r:output()) do print(line) end
//	end
//
// Timeouts are in milliseconds. A nil or negative timeout waits without a
// deadline, 0 checks once.
//
// # Sandbox
//
// Only the base, table, string and math libraries are opened. dofile,
// loadfile, load and loadstring are removed, package.path is cleared and
// require only resolves the safe libraries and preloaded modules. print
// writes to the state's output.
package lua

// Package editor hosts a plugin GUI inside a host-provided window.
//
// The GUI is a bubbletea model (Init/Update/View). The editor does not run a
// tea.Program; it drives the model from the native window's event loop, one
// tick per frame or input event, and presents the rendered frame to the
// window only when it changed.
//
// Three pieces cooperate:
//
//   - the lifecycle (Closed, Opening, Open, Closing) owns the window, the
//     runtime and the parameter bridge for one open session;
//   - the runtime drains parameter changes published by the audio thread and
//     feeds them to the model as ParamChangedMsg, alongside input events;
//   - the size negotiator proposes the GUI's desired size to the host and
//     re-lays-out the GUI against whatever size the host accepted.
//
// NotifyParameterChanged is the only method that may be called from the
// audio thread. Everything else runs on the host's control thread or on the
// editor's own GUI goroutine.
package editor

// Package approval asks a human to pick one of a fixed set of options and
// sends one-way operator notices.
//
// Gateway is the seam the stage runners depend on. Telegram posts an inline
// keyboard through the Bot API and long-polls for the button press. Console
// prompts on the local terminal. Auto answers immediately for unattended or
// test runs. WithTimeout bounds every request and validates the returned
// label against the offered options.
package approval

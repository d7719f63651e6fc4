// Package fsm is the conversational core: a pure, total transition
// function over the closed set of dialogue states. It decides, it never
// talks to the network — outbound effects come back as Actions for the
// dispatcher to execute.
package fsm

import (
	"github.com/user/resizebot/internal/types"
)

// Bot commands. Telegram strips the leading slash before these reach us.
const (
	CmdStart  = "start"
	CmdHelp   = "help"
	CmdResize = "resize"
)

// User-facing replies.
const (
	HelpText = "Hello, I'm the Resize Image Bot! " +
		"Send /resize and then a picture or an image file, " +
		"and I'll resize it to fit in a 512x512 square and send " +
		"you back the file in PNG format.\n\n" +
		"The result can be sent to the @Stickers bot to add a new " +
		"sticker to your sticker pack!"

	msgSendPicture    = "OK. Send me a picture"
	msgUnknownCommand = "Unknown or absent command. Try /help"
	msgCommandFirst   = "Send /resize first, then the picture."
	msgExpectedImage  = "Expected an image or a file containing an image. Send /resize to try again."
	msgCommandHint    = "Command expected. Try /help to get info about available commands"
)

// ActionKind discriminates the outbound effects a transition can request.
type ActionKind int

const (
	// ActionReply sends a text message to the conversation.
	ActionReply ActionKind = iota
	// ActionResize runs the media pipeline on File.
	ActionResize
)

// Action is one outbound effect requested by a transition. Actions are
// executed by the dispatcher outside the session store's critical section.
type Action struct {
	Kind ActionKind
	Text string
	File types.FileRef
}

func reply(text string) Action {
	return Action{Kind: ActionReply, Text: text}
}

func resize(file types.FileRef) Action {
	return Action{Kind: ActionResize, File: file}
}

// Commands returns the command menu registered with the platform.
func Commands() []types.BotCommand {
	return []types.BotCommand{
		{Name: CmdHelp, Description: "display help text."},
		{Name: CmdResize, Description: "resize an image to use in the @Stickers bot."},
	}
}

// Transition maps (current state, event) to (next state, actions). It is
// total: every state and event kind has a defined outcome. Unsolicited
// media in Idle is rejected with a usage hint rather than processed.
func Transition(state types.SessionState, ev types.Event) (types.SessionState, []Action) {
	switch state {
	case types.StateAwaitingImage:
		return awaitingImage(ev)
	default:
		return idle(ev)
	}
}

func idle(ev types.Event) (types.SessionState, []Action) {
	switch ev.Kind {
	case types.KindCommand:
		switch ev.Command {
		case CmdStart, CmdHelp:
			return types.StateIdle, []Action{reply(HelpText)}
		case CmdResize:
			return types.StateAwaitingImage, []Action{reply(msgSendPicture)}
		default:
			return types.StateIdle, []Action{reply(msgUnknownCommand)}
		}
	case types.KindText:
		return types.StateIdle, []Action{reply(msgUnknownCommand)}
	case types.KindPhoto, types.KindDocument:
		return types.StateIdle, []Action{reply(msgCommandFirst)}
	default:
		return types.StateIdle, []Action{reply(msgCommandHint)}
	}
}

func awaitingImage(ev types.Event) (types.SessionState, []Action) {
	switch ev.Kind {
	case types.KindPhoto:
		// Largest reported width wins. An empty variant list still goes
		// to the pipeline, which reports it as a missing-media failure.
		best, _ := ev.BestPhoto()
		return types.StateIdle, []Action{resize(best)}
	case types.KindDocument:
		// Declared mime type is untrusted; a non-image document simply
		// fails at the decode stage.
		return types.StateIdle, []Action{resize(ev.Document)}
	default:
		return types.StateIdle, []Action{reply(msgExpectedImage)}
	}
}

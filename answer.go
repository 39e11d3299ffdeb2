package standupscot

const (
	// ResponseTypeOpt is the name of the option holding the slash command response type
	ResponseTypeOpt = "responseType"

	// Slash command response types
	ephemeralResponse = "ephemeral"
	inChannelResponse = "in_channel"
)

// Answer holds data of an Action's Answer: namely, its text and options
// to use when delivering it
type Answer struct {
	Text string

	// Options to apply when sending a message
	Options []AnswerOption
}

// AnswerOption defines a function applied to Answers
type AnswerOption func(sendOpts map[string]string)

// AnswerEphemeral sets a slash command answer to be only visible to the user who invoked it. This is the default
func AnswerEphemeral() AnswerOption {
	return func(sendOpts map[string]string) {
		sendOpts[ResponseTypeOpt] = ephemeralResponse
	}
}

// AnswerInChannel sets a slash command answer to be visible to everyone in the channel
func AnswerInChannel() AnswerOption {
	return func(sendOpts map[string]string) {
		sendOpts[ResponseTypeOpt] = inChannelResponse
	}
}

// ApplyAnswerOpts applies answering options to build the send configuration
func ApplyAnswerOpts(opts ...AnswerOption) (sendOptions map[string]string) {
	sendOptions = map[string]string{ResponseTypeOpt: ephemeralResponse}
	for _, opt := range opts {
		opt(sendOptions)
	}

	return sendOptions
}

package flow

import (
	"fmt"

	"github.com/pasindu8/telegrambot/bot/files"
)

const (
	replyHelp = "Hi! Here is what I can do:\n" +
		"/sendmsg - relay a text message to a phone number\n" +
		"/upload_file - store a file and get a PIN for it\n" +
		"/get_file - redeem a PIN for a stored file\n" +
		"/download_url - fetch a file from a URL\n" +
		"/ask_ai - ask the AI assistant\n" +
		"/cancel - abort the current action"

	replyAskNumber      = "Enter the destination phone number."
	replyBadNumber      = "That does not look like a phone number. Send at least 10 digits, numbers only."
	replyAskMessage     = "Enter the message to send."
	replyRelaySent      = "Message sent."
	replyRelayFailed    = "Could not send the message. Please try again later."
	replyAskDownloadURL = "Send the URL to download."
	replyBadURL         = "The URL must start with http:// or https://."
	replyFetchFailed    = "Could not download that URL. Please try again later."
	replyAskUpload      = "Send the file you want to store."
	replyNeedAttachment = "I need a file. Send a document, photo, video or audio."
	replyUploadFailed   = "Could not store the file. Please try again later."
	replyAskPin         = "Enter the PIN of the file."
	replyInvalidPin     = "Invalid PIN."
	replyAskAIQuery     = "What would you like to ask?"
	replyAIFailed       = "The assistant could not answer. Please try again later."
	replyUnavailable    = "This service is unavailable right now. Please try again later."
	replyYTUnavailable  = "Video downloads are not available in this deployment."
	replyCancelled      = "Cancelled."
	replyNothingActive  = "Nothing to cancel."
	replyUnrecognized   = "Unrecognized command. Send /start to see what I can do."
	replyNotUnderstood  = "I did not understand that. Send /start to see what I can do."
	replyUseUpload      = "To store a file, send /upload_file first."
)

func replyPinIssued(pin string) string {
	return fmt.Sprintf("File stored. Share this PIN to retrieve it: %s", pin)
}

func replyOversized(sizeBytes int64) string {
	return fmt.Sprintf("The file is too large: %d bytes, the limit is %d MiB.",
		sizeBytes, int64(files.MaxTransferBytes)/(1024*1024))
}

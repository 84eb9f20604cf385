package core

import "strconv"

// Well-known event kinds shown on the dashboard.
const (
	KindMetadata        = 0
	KindTextNote        = 1
	KindContacts        = 3
	KindEncryptedDM     = 4
	KindDeletion        = 5
	KindRepost          = 6
	KindReaction        = 7
	KindGenericRepost   = 16
	KindChannelCreate   = 40
	KindChannelMetadata = 41
	KindChannelMessage  = 42
	KindChannelHide     = 43
	KindChannelMute     = 44
	KindReport          = 1984
	KindZap             = 9735
	KindRelayList       = 10002
	KindArticle         = 30023
)

var kindLabels = map[int]string{
	KindMetadata:        "Metadata",
	KindTextNote:        "Text Note",
	KindContacts:        "Contacts",
	KindEncryptedDM:     "DM",
	KindDeletion:        "Deletion",
	KindRepost:          "Repost",
	KindReaction:        "Reaction",
	KindGenericRepost:   "Generic Repost",
	KindChannelCreate:   "Channel Create",
	KindChannelMetadata: "Channel Metadata",
	KindChannelMessage:  "Channel Message",
	KindChannelHide:     "Channel Hide",
	KindChannelMute:     "Channel Mute",
	KindReport:          "Report",
	KindZap:             "Zap",
	KindRelayList:       "Relay List",
	KindArticle:         "Article",
}

// KindLabel returns a human label for a kind, or "Kind <n>" when unknown.
func KindLabel(kind int) string {
	if label, ok := kindLabels[kind]; ok {
		return label
	}
	return "Kind " + strconv.Itoa(kind)
}

// KindLabels returns a copy of the known label table.
func KindLabels() map[int]string {
	out := make(map[int]string, len(kindLabels))
	for k, v := range kindLabels {
		out[k] = v
	}
	return out
}

package message

// detectionOrder is the order in which kind-named keys are probed. More
// specific kinds come first so a bare textMessage field alongside a richer
// envelope does not win.
var detectionOrder = []Kind{
	KindExtendedText,
	KindImage,
	KindVideo,
	KindAudio,
	KindDocument,
	KindSticker,
	KindLocation,
	KindContact,
	KindReaction,
	KindText,
}

// detectAliases are extra keys that identify a kind without being named
// after it.
var detectAliases = map[Kind][]string{
	KindText: {"conversation"},
}

var pollKeys = []string{"pollMessageData", "pollCreationMessage", "pollMessage"}

// Detect classifies a record. It never fails: unrecognized shapes resolve
// to KindUnknown.
func Detect(v *View) Kind {
	if v == nil {
		return KindUnknown
	}

	for _, key := range []string{"type", "typeMessage"} {
		name, ok := v.String(KindUnknown, key)
		if !ok {
			continue
		}
		if k, ok := ParseKind(name); ok && k != KindUnknown {
			return k
		}
	}

	for _, k := range detectionOrder {
		for _, key := range append(k.envelopeKeys(), detectAliases[k]...) {
			if v.Has(key) {
				return k
			}
		}
	}

	for _, key := range pollKeys {
		if v.Has(key) {
			return KindPoll
		}
	}

	return KindUnknown
}

package apkchannel

import (
	"errors"

	"github.com/avast/apkchannel/comment"
	"github.com/avast/apkchannel/signingblock"
)

// GetIdValue returns the value stored under id in the APK Signing Block of the APK at path.
// It returns nil and no error when the block exists but holds no such id. A present id
// with an empty value yields a non-nil empty slice.
func GetIdValue(path string, id uint32) ([]byte, error) {
	v, _, err := lookupIdValue(path, id)
	return v, err
}

func lookupIdValue(path string, id uint32) ([]byte, bool, error) {
	pairs, err := signingblock.ReadPairs(path)
	if err != nil {
		return nil, false, err
	}

	v, ok := pairs.Get(id)
	return v, ok, nil
}

// GetAllIdValues returns every pair of the APK Signing Block, the signature blocks included.
func GetAllIdValues(path string) (*signingblock.Pairs, error) {
	return signingblock.ReadPairs(path)
}

// GetStringValue is GetIdValue for values holding UTF-8 text. ok is false when id is absent.
func GetStringValue(path string, id uint32) (value string, ok bool, err error) {
	v, ok, err := lookupIdValue(path, id)
	if err != nil || !ok {
		return "", false, err
	}
	return string(v), true, nil
}

// GetChannel returns the channel of the APK at path. The APK Signing Block is tried first,
// then the archive comment. ErrNoChannel means neither holds one.
func GetChannel(path string) (string, error) {
	channel, ok, err := GetStringValue(path, ChannelBlockID)
	switch {
	case err == nil && ok:
		return channel, nil
	case err != nil && !signingblock.IsNotFoundError(err):
		return "", err
	}

	channel, err = comment.Read(path)
	if errors.Is(err, comment.ErrNoChannelInfo) {
		return "", ErrNoChannel
	}
	return channel, err
}

package materializer

import (
	"errors"

	"github.com/decred/dcrd/hdkeychain/v3"

	"github.com/andreabadesso/hathor-wallet-service/modules"
)

// bip32MainNetParams supplies the standard BIP-32 version bytes so
// hdkeychain.NewKeyFromString can decode an xpubkey's base58, checksum and
// field layout. Derivation itself is always performed externally (spec §1
// "external collaborators supply a key-derivation function"); this package
// uses hdkeychain purely to reject malformed xpubkey strings before
// registration, not to derive anything from them.
type bip32MainNetParams struct{}

func (bip32MainNetParams) HDPrivKeyID() [4]byte { return [4]byte{0x04, 0x88, 0xad, 0xe4} }
func (bip32MainNetParams) HDPubKeyID() [4]byte  { return [4]byte{0x04, 0x88, 0xb2, 0x1e} }

// validateXPubKey reports whether xpubkey is a structurally valid extended
// public key: correct base58 encoding, checksum, length and field layout.
// A version-byte mismatch against the standard BIP-32 mainnet prefix is
// tolerated -- this system's xpubkeys are not assumed to be Bitcoin keys,
// only BIP-32-shaped ones, and by the time hdkeychain reports a wrong
// network it has already validated everything else about the encoding.
func validateXPubKey(xpubkey string) error {
	if xpubkey == "" {
		return modules.NewMissingParameterError("xpubkey")
	}
	key, err := hdkeychain.NewKeyFromString(xpubkey, bip32MainNetParams{})
	if err != nil && !errors.Is(err, hdkeychain.ErrWrongNetwork) {
		return modules.NewInvalidParameterError("xpubkey")
	}
	if err == nil && key.IsPrivate() {
		return modules.NewInvalidParameterError("xpubkey")
	}
	return nil
}

package certvault

import (
	"path/filepath"
	"strings"
)

// Format identifies the container format of an uploaded blob. Detection is
// extension-based and is a hint only: the decoder still attempts fallback
// parses, since files are routinely misnamed (DER content in a .crt,
// PEM content in a .der).
type Format string

const (
	FormatPEM     Format = "PEM"
	FormatCRT     Format = "CRT"
	FormatPKCS12  Format = "PKCS12"
	FormatKey     Format = "KEY"
	FormatUnknown Format = "UNKNOWN"
)

// certExtensions maps certificate file extensions to the CRT format.
var certExtensions = map[string]bool{
	".crt":  true,
	".cer":  true,
	".der":  true,
	".cert": true,
}

// keyExtensions maps private key file extensions to the KEY format.
var keyExtensions = map[string]bool{
	".key":     true,
	".privkey": true,
	".p8":      true,
}

// DetectFormat classifies a file by extension. Never fails: unrecognized
// extensions yield FormatUnknown, which is a valid terminal outcome the
// decoder resolves by content sniffing.
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".p12" || ext == ".pfx":
		return FormatPKCS12
	case ext == ".pem":
		return FormatPEM
	case certExtensions[ext]:
		return FormatCRT
	case keyExtensions[ext]:
		return FormatKey
	default:
		return FormatUnknown
	}
}

// Ext returns the canonical file extension for the format, without the dot.
func (f Format) Ext() string {
	switch f {
	case FormatPEM:
		return "pem"
	case FormatCRT:
		return "crt"
	case FormatPKCS12:
		return "pfx"
	case FormatKey:
		return "key"
	default:
		return "bin"
	}
}

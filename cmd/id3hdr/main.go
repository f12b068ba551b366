// Command id3hdr prints the tag-level structure of the ID3v2 tag at the
// start of a file: header flags, extended header fields, and where the
// audio data begins.
package main

import (
	"flag"
	"io"
	"log"
	"os"

	"ktkr.us/pkg/fmtutil"
	"ktkr.us/pkg/tagcodec"
	"ktkr.us/pkg/tagcodec/id3v2"
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatalf("usage: %s <mp3 filename>", os.Args[0])
	}

	registerFormats()

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	defer f.Close()

	tag, name, err := tagcodec.Parse(f)
	if err != nil {
		log.Fatal(err)
	}

	t := tag.(*id3v2.Tag)

	log.Printf("%s rev %d, %v on disk", name, t.Header.Minor, fmtutil.SI(int64(t.Header.Size)))
	log.Printf("Unsynchronized: %v", t.Header.Unsynchronisation)
	log.Printf("Experimental:   %v", t.Header.Experimental)
	if t.Header.Footer {
		log.Print("footer present")
	}
	if t.Header.UnknownFlags {
		log.Print("unknown flag bits set")
	}

	if ext := t.Extended; ext != nil {
		if ext.HasCRC {
			log.Printf("CRC:            %08X", ext.CRC)
		}
		if ext.PaddingSize > 0 {
			log.Printf("Padding:        %v", fmtutil.SI(int64(ext.PaddingSize)))
		}
		if ext.IsUpdate {
			log.Print("tag is an update")
		}
		if ext.HasRestrictions {
			log.Printf("Restrictions:   %08b", ext.Restrictions)
		}
	}

	log.Printf("Body:           %v after de-unsynchronization", fmtutil.SI(int64(len(t.Body))))
	log.Printf("Audio data starts at byte %d", t.DataOffset())
}

// registerFormats wires the three ID3v2 codecs into the registry. This is
// the explicit registration seam: nothing registers itself on import.
func registerFormats() {
	for _, v := range []id3v2.Version{id3v2.V22, id3v2.V23, id3v2.V24} {
		v := v
		tagcodec.Register(tagcodec.Format{
			Name:  v.String(),
			Magic: string(append([]byte("ID3"), byte(v))),
			Verify: func(rs io.ReadSeeker) bool {
				return id3v2.Verify(rs, v)
			},
			Parse: func(rs io.ReadSeeker) (tagcodec.Tag, error) {
				t, err := id3v2.Parse(rs, v)
				if err != nil {
					return nil, err
				}
				return t, nil
			},
		})
	}
}

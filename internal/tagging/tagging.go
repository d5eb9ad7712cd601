package tagging

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"

	"github.com/erenuysaldev/Erotify/internal/constants"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Tags is the subset of embedded metadata the library cares about.
type Tags struct {
	Title      string
	Artist     string
	Album      string
	Artwork    []byte
	HasArtwork bool
}

// Read returns the embedded tags of an MP3 or FLAC file. Other formats
// yield ErrUnsupportedFormat.
func Read(filePath string) (*Tags, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case constants.ExtMP3:
		return readMP3(filePath)
	case constants.ExtFLAC:
		return readFLAC(filePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filePath))
	}
}

// Write stores title, artist, album and optional cover art into the file.
func Write(filePath string, tags *Tags) error {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case constants.ExtMP3:
		return writeMP3(filePath, tags)
	case constants.ExtFLAC:
		return writeFLAC(filePath, tags)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filePath))
	}
}

func readMP3(filePath string) (*Tags, error) {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	tags := &Tags{
		Title:  tag.Title(),
		Artist: tag.Artist(),
		Album:  tag.Album(),
	}
	for _, f := range tag.GetFrames(tag.CommonID("Attached picture")) {
		if pic, ok := f.(id3v2.PictureFrame); ok && len(pic.Picture) > 0 {
			tags.HasArtwork = true
			break
		}
	}
	return tags, nil
}

func writeMP3(filePath string, tags *Tags) error {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if tags.Title != "" {
		tag.SetTitle(tags.Title)
	}
	if tags.Artist != "" {
		tag.SetArtist(tags.Artist)
	}
	if tags.Album != "" {
		tag.SetAlbum(tags.Album)
	}
	if len(tags.Artwork) > 0 {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    http.DetectContentType(tags.Artwork),
			PictureType: id3v2.PTFrontCover,
			Description: "Front cover",
			Picture:     tags.Artwork,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save MP3 tags: %w", err)
	}
	return nil
}

func readFLAC(filePath string) (*Tags, error) {
	f, err := flac.ParseFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	tags := &Tags{}
	for _, block := range f.Meta {
		switch block.Type {
		case flac.VorbisComment:
			cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
			if err != nil {
				return nil, fmt.Errorf("failed to parse vorbis comment: %w", err)
			}
			tags.Title = firstComment(cmt, flacvorbis.FIELD_TITLE)
			tags.Artist = firstComment(cmt, flacvorbis.FIELD_ARTIST)
			tags.Album = firstComment(cmt, flacvorbis.FIELD_ALBUM)
		case flac.Picture:
			pic, err := flacpicture.ParseFromMetaDataBlock(*block)
			if err == nil && len(pic.ImageData) > 0 {
				tags.HasArtwork = true
			}
		}
	}
	return tags, nil
}

func writeFLAC(filePath string, tags *Tags) error {
	f, err := flac.ParseFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to open FLAC file: %w", err)
	}

	cmt := flacvorbis.New()
	kept := f.Meta[:0]
	for _, block := range f.Meta {
		if block.Type == flac.VorbisComment {
			if existing, err := flacvorbis.ParseFromMetaDataBlock(*block); err == nil {
				cmt = existing
			}
			continue
		}
		kept = append(kept, block)
	}

	setComment(cmt, flacvorbis.FIELD_TITLE, tags.Title)
	setComment(cmt, flacvorbis.FIELD_ARTIST, tags.Artist)
	setComment(cmt, flacvorbis.FIELD_ALBUM, tags.Album)

	block := cmt.Marshal()
	f.Meta = append(kept, &block)

	if len(tags.Artwork) > 0 {
		pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front cover", tags.Artwork, http.DetectContentType(tags.Artwork))
		if err != nil {
			return fmt.Errorf("failed to build picture block: %w", err)
		}
		picBlock := pic.Marshal()
		f.Meta = append(f.Meta, &picBlock)
	}

	if err := f.Save(filePath); err != nil {
		return fmt.Errorf("failed to save FLAC tags: %w", err)
	}
	return nil
}

func firstComment(cmt *flacvorbis.MetaDataBlockVorbisComment, field string) string {
	values, err := cmt.Get(field)
	if err != nil || len(values) == 0 {
		return ""
	}
	return values[0]
}

// setComment replaces every existing value of field.
func setComment(cmt *flacvorbis.MetaDataBlockVorbisComment, field, value string) {
	if value == "" {
		return
	}
	prefix := field + "="
	kept := cmt.Comments[:0]
	for _, c := range cmt.Comments {
		if !strings.HasPrefix(strings.ToUpper(c), prefix) {
			kept = append(kept, c)
		}
	}
	cmt.Comments = kept
	_ = cmt.Add(field, value)
}

// Package ziptest builds ZIP archives byte by byte for tests.
//
// Unlike archive/zip.Writer, the builder can produce archives that are unusual or broken on purpose: junk between
// entries, local headers that disagree with the central directory, unsafe names, bad signatures.
package ziptest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

const (
	lfhSig  = 0x04034b50
	cdfhSig = 0x02014b50
	eocdSig = 0x06054b50

	// dosDate is 1980-01-01 in MS-DOS date format.
	dosDate = 0x21
)

// Entry is one entry of an Archive.
type Entry struct {
	Name string
	Data []byte
	// Method is written to both the local and central directory headers. Data is written as-is regardless.
	Method uint16
	// Flags is written to both the local and central directory headers. If the data descriptor bit (0x8) is set, the
	// local header's CRC-32 and sizes are written as zero.
	Flags uint16
	// CRC32 overrides the checksum written to the headers if non-nil.
	CRC32 *uint32
	// LocalSigOverride replaces the local file header signature if non-zero.
	LocalSigOverride uint32
}

// Archive describes the layout of a ZIP archive.
type Archive struct {
	Entries []Entry
	// Prefix is written before the first local file header.
	Prefix []byte
	// Gap is the number of junk bytes written after each entry's data.
	Gap int
	// Comment is the EOCD comment.
	Comment string
}

// Bytes encodes the archive.
func (a Archive) Bytes() []byte {
	var (
		le    = binary.LittleEndian
		b, cd []byte
	)

	b = append(b, a.Prefix...)

	for _, e := range a.Entries {
		offset := uint32(len(b))
		crc, size := crc32.ChecksumIEEE(e.Data), uint32(len(e.Data))
		if e.CRC32 != nil {
			crc = *e.CRC32
		}

		localCRC, localSize := crc, size
		if e.Flags&0x8 != 0 {
			localCRC, localSize = 0, 0
		}

		sig := uint32(lfhSig)
		if e.LocalSigOverride != 0 {
			sig = e.LocalSigOverride
		}

		b = le.AppendUint32(b, sig)
		b = le.AppendUint16(b, 20)
		b = le.AppendUint16(b, e.Flags)
		b = le.AppendUint16(b, e.Method)
		b = le.AppendUint16(b, 0)
		b = le.AppendUint16(b, dosDate)
		b = le.AppendUint32(b, localCRC)
		b = le.AppendUint32(b, localSize)
		b = le.AppendUint32(b, localSize)
		b = le.AppendUint16(b, uint16(len(e.Name)))
		b = le.AppendUint16(b, 0)
		b = append(b, e.Name...)
		b = append(b, e.Data...)
		b = append(b, bytes.Repeat([]byte{0xaa}, a.Gap)...)

		cd = le.AppendUint32(cd, cdfhSig)
		cd = le.AppendUint16(cd, 20)
		cd = le.AppendUint16(cd, 20)
		cd = le.AppendUint16(cd, e.Flags)
		cd = le.AppendUint16(cd, e.Method)
		cd = le.AppendUint16(cd, 0)
		cd = le.AppendUint16(cd, dosDate)
		cd = le.AppendUint32(cd, crc)
		cd = le.AppendUint32(cd, size)
		cd = le.AppendUint32(cd, size)
		cd = le.AppendUint16(cd, uint16(len(e.Name)))
		cd = le.AppendUint16(cd, 0)
		cd = le.AppendUint16(cd, 0)
		cd = le.AppendUint16(cd, 0)
		cd = le.AppendUint16(cd, 0)
		cd = le.AppendUint32(cd, 0)
		cd = le.AppendUint32(cd, offset)
		cd = append(cd, e.Name...)
	}

	cdOffset := uint32(len(b))
	b = append(b, cd...)
	b = le.AppendUint32(b, eocdSig)
	b = le.AppendUint16(b, 0)
	b = le.AppendUint16(b, 0)
	b = le.AppendUint16(b, uint16(len(a.Entries)))
	b = le.AppendUint16(b, uint16(len(a.Entries)))
	b = le.AppendUint32(b, uint32(len(cd)))
	b = le.AppendUint32(b, cdOffset)
	b = le.AppendUint16(b, uint16(len(a.Comment)))
	b = append(b, a.Comment...)
	return b
}

// Store uses archive/zip.Writer to create an archive with the given name-content pairs, all with zip.Store.
//
// Names that end with "/" are written as directories and their content is ignored.
func Store(files ...string) []byte {
	if len(files)%2 != 0 {
		panic("ziptest.Store: files must be name-content pairs")
	}

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for i := 0; i < len(files); i += 2 {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: files[i], Method: zip.Store})
		if err != nil {
			panic(err)
		}

		if name := files[i]; name[len(name)-1] != '/' {
			if _, err = w.Write([]byte(files[i+1])); err != nil {
				panic(err)
			}
		}
	}

	if err := zw.Close(); err != nil {
		panic(err)
	}

	return buf.Bytes()
}

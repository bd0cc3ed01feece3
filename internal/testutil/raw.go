package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// RawEntry is a stored local entry written byte for byte by RawArchive.
type RawEntry struct {
	Name string
	Data []byte

	// LocalName overrides the name written into the local header.
	LocalName string

	// Descriptor zeroes the local header sizes and appends a signed data descriptor.
	Descriptor bool

	// Zip64Descriptor escapes the local header sizes and appends a data
	// descriptor with 8-byte sizes. Implies Descriptor.
	Zip64Descriptor bool
}

// RawRecord is one central directory record written by RawArchive.
type RawRecord struct {
	// Name is written into the record; empty uses the local entry's name.
	Name string

	// Local is the index of the entry the record describes.
	Local int

	// Offset, when non-nil, replaces the entry's real local header offset.
	Offset *uint64

	// Zip64Offset escapes the offset field and stores it in a Zip64 extra block.
	Zip64Offset bool
}

// RawArchive hand-assembles a ZIP image so tests can produce structures the
// zip codec's writer never emits.
type RawArchive struct {
	Entries []RawEntry

	// Records defaults to one record per entry, in order.
	Records []RawRecord

	// Disk is written into both disk number fields of the end record.
	Disk uint16

	// OnDisk and Total override the entry counts of the end record(s).
	OnDisk *uint64
	Total  *uint64

	// Zip64End writes a Zip64 end record and locator, and escapes the
	// classic end record so readers follow the locator.
	Zip64End bool
}

// Uint64 returns a pointer to v.
func Uint64(v uint64) *uint64 {
	return &v
}

// Bytes assembles the archive.
func (a RawArchive) Bytes() []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian

	offsets := make([]uint64, len(a.Entries))
	for i, e := range a.Entries {
		offsets[i] = uint64(buf.Len())
		name := e.Name
		if e.LocalName != "" {
			name = e.LocalName
		}
		crc := crc32.ChecksumIEEE(e.Data)
		flags := uint16(0x800)
		csize, usize := uint32(len(e.Data)), uint32(len(e.Data))
		localCRC := crc
		if e.Descriptor || e.Zip64Descriptor {
			flags |= 0x8
			localCRC, csize, usize = 0, 0, 0
		}
		if e.Zip64Descriptor {
			csize, usize = 0xFFFFFFFF, 0xFFFFFFFF
		}

		var extra []byte
		if e.Zip64Descriptor {
			extra = le.AppendUint16(extra, 0x0001)
			extra = le.AppendUint16(extra, 16)
			extra = le.AppendUint64(extra, 0)
			extra = le.AppendUint64(extra, 0)
		}

		h := le.AppendUint32(nil, 0x04034b50)
		h = le.AppendUint16(h, 20)
		h = le.AppendUint16(h, flags)
		h = le.AppendUint16(h, 0) // stored
		h = le.AppendUint32(h, 0) // time and date
		h = le.AppendUint32(h, localCRC)
		h = le.AppendUint32(h, csize)
		h = le.AppendUint32(h, usize)
		h = le.AppendUint16(h, uint16(len(name)))
		h = le.AppendUint16(h, uint16(len(extra)))
		buf.Write(h)
		buf.WriteString(name)
		buf.Write(extra)
		buf.Write(e.Data)

		switch {
		case e.Zip64Descriptor:
			d := le.AppendUint32(nil, 0x08074b50)
			d = le.AppendUint32(d, crc)
			d = le.AppendUint64(d, uint64(len(e.Data)))
			d = le.AppendUint64(d, uint64(len(e.Data)))
			buf.Write(d)
		case e.Descriptor:
			d := le.AppendUint32(nil, 0x08074b50)
			d = le.AppendUint32(d, crc)
			d = le.AppendUint32(d, uint32(len(e.Data)))
			d = le.AppendUint32(d, uint32(len(e.Data)))
			buf.Write(d)
		}
	}

	records := a.Records
	if records == nil {
		for i := range a.Entries {
			records = append(records, RawRecord{Local: i})
		}
	}

	dirStart := uint64(buf.Len())
	for _, r := range records {
		e := a.Entries[r.Local]
		name := r.Name
		if name == "" {
			name = e.Name
		}
		offset := offsets[r.Local]
		if r.Offset != nil {
			offset = *r.Offset
		}
		flags := uint16(0x800)
		if e.Descriptor || e.Zip64Descriptor {
			flags |= 0x8
		}

		offset32 := uint32(offset)
		var extra []byte
		if r.Zip64Offset {
			offset32 = 0xFFFFFFFF
			extra = le.AppendUint16(extra, 0x0001)
			extra = le.AppendUint16(extra, 8)
			extra = le.AppendUint64(extra, offset)
		}

		h := le.AppendUint32(nil, 0x02014b50)
		h = le.AppendUint16(h, 0x0314) // made by unix, 2.0
		h = le.AppendUint16(h, 20)
		h = le.AppendUint16(h, flags)
		h = le.AppendUint16(h, 0) // stored
		h = le.AppendUint32(h, 0) // time and date
		h = le.AppendUint32(h, crc32.ChecksumIEEE(e.Data))
		h = le.AppendUint32(h, uint32(len(e.Data)))
		h = le.AppendUint32(h, uint32(len(e.Data)))
		h = le.AppendUint16(h, uint16(len(name)))
		h = le.AppendUint16(h, uint16(len(extra)))
		h = le.AppendUint16(h, 0) // comment
		h = le.AppendUint16(h, 0) // disk number start
		h = le.AppendUint16(h, 0) // internal attributes
		h = le.AppendUint32(h, 0o100644<<16)
		h = le.AppendUint32(h, offset32)
		buf.Write(h)
		buf.WriteString(name)
		buf.Write(extra)
	}
	dirEnd := uint64(buf.Len())
	dirSize := dirEnd - dirStart

	onDisk, total := uint64(len(records)), uint64(len(records))
	if a.OnDisk != nil {
		onDisk = *a.OnDisk
	}
	if a.Total != nil {
		total = *a.Total
	}

	if a.Zip64End {
		z := le.AppendUint32(nil, 0x06064b50)
		z = le.AppendUint64(z, 44)
		z = le.AppendUint16(z, 45)
		z = le.AppendUint16(z, 45)
		z = le.AppendUint32(z, uint32(a.Disk))
		z = le.AppendUint32(z, uint32(a.Disk))
		z = le.AppendUint64(z, onDisk)
		z = le.AppendUint64(z, total)
		z = le.AppendUint64(z, dirSize)
		z = le.AppendUint64(z, dirStart)
		buf.Write(z)

		l := le.AppendUint32(nil, 0x07064b50)
		l = le.AppendUint32(l, 0)
		l = le.AppendUint64(l, dirEnd)
		l = le.AppendUint32(l, 1)
		buf.Write(l)
	}

	e := le.AppendUint32(nil, 0x06054b50)
	e = le.AppendUint16(e, a.Disk)
	e = le.AppendUint16(e, a.Disk)
	if a.Zip64End {
		e = le.AppendUint16(e, 0xFFFF)
		e = le.AppendUint16(e, 0xFFFF)
		e = le.AppendUint32(e, 0xFFFFFFFF)
		e = le.AppendUint32(e, 0xFFFFFFFF)
	} else {
		e = le.AppendUint16(e, uint16(onDisk))
		e = le.AppendUint16(e, uint16(total))
		e = le.AppendUint32(e, uint32(dirSize))
		e = le.AppendUint32(e, uint32(dirStart))
	}
	e = le.AppendUint16(e, 0) // comment length
	buf.Write(e)
	return buf.Bytes()
}

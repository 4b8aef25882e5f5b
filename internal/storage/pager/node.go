package pager

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// NodeType distinguishes a B+Tree internal node from a leaf.
type NodeType uint8

const (
	Internal NodeType = iota
	Leaf
)

// HeaderSize is the size, in bytes, of the NodeHeader present at the start
// of every B+Tree page.
const HeaderSize = 17

// SlotSize is the size, in bytes, of one slot-array entry.
const SlotSize = 4

// ValueSize is the fixed size, in bytes, of a leaf cell's value.
const ValueSize = 16

// Header offsets within a node page.
const (
	hdrTypeOff       = 0
	hdrKeysCountOff  = 1
	hdrHeapPtrOff    = 3
	hdrParentOff     = 5
	hdrNextOff       = 9
	hdrFirstChildOff = 13
)

// NodeHeader is the 17-byte header present on every B+Tree page.
type NodeHeader struct {
	Type        NodeType
	KeysCount   uint16
	HeapPointer uint16
	ParentPage  PageID
	NextPage    PageID // leaf sibling pointer; 0 means none
	FirstChild  PageID // internal only: pointer to the leftmost child
}

// Node is a typed view over a mutable page buffer laid out as a slotted
// page: a NodeHeader, a slot array growing upward from HeaderSize, and
// cells growing downward from the end of the page.
type Node struct {
	buf []byte
}

// WrapNode wraps an existing page buffer (PageSize bytes) as a Node.
func WrapNode(buf []byte) *Node {
	return &Node{buf: buf}
}

// Bytes returns the underlying page buffer.
func (n *Node) Bytes() []byte {
	return n.buf
}

// Init writes a fresh header: keys_count=0, heap_pointer=PageSize,
// next_page=0, first_child=0.
func (n *Node) Init(t NodeType, parent PageID) {
	n.SetHeader(NodeHeader{
		Type:        t,
		KeysCount:   0,
		HeapPointer: PageSize,
		ParentPage:  parent,
		NextPage:    0,
		FirstChild:  0,
	})
}

// GetHeader reads the node's header.
func (n *Node) GetHeader() NodeHeader {
	buf := n.buf
	return NodeHeader{
		Type:        NodeType(buf[hdrTypeOff]),
		KeysCount:   binary.LittleEndian.Uint16(buf[hdrKeysCountOff:]),
		HeapPointer: binary.LittleEndian.Uint16(buf[hdrHeapPtrOff:]),
		ParentPage:  PageID(binary.LittleEndian.Uint32(buf[hdrParentOff:])),
		NextPage:    PageID(binary.LittleEndian.Uint32(buf[hdrNextOff:])),
		FirstChild:  PageID(binary.LittleEndian.Uint32(buf[hdrFirstChildOff:])),
	}
}

// SetHeader writes h into the node's header.
func (n *Node) SetHeader(h NodeHeader) {
	buf := n.buf
	buf[hdrTypeOff] = byte(h.Type)
	binary.LittleEndian.PutUint16(buf[hdrKeysCountOff:], h.KeysCount)
	binary.LittleEndian.PutUint16(buf[hdrHeapPtrOff:], h.HeapPointer)
	binary.LittleEndian.PutUint32(buf[hdrParentOff:], uint32(h.ParentPage))
	binary.LittleEndian.PutUint32(buf[hdrNextOff:], uint32(h.NextPage))
	binary.LittleEndian.PutUint32(buf[hdrFirstChildOff:], uint32(h.FirstChild))
}

// KeysCount is a convenience accessor for GetHeader().KeysCount.
func (n *Node) KeysCount() int {
	return int(binary.LittleEndian.Uint16(n.buf[hdrKeysCountOff:]))
}

// Type is a convenience accessor for GetHeader().Type.
func (n *Node) Type() NodeType {
	return NodeType(n.buf[hdrTypeOff])
}

func (n *Node) slotOffset(i int) int {
	return HeaderSize + i*SlotSize
}

func (n *Node) getSlot(i int) (offset, length uint16) {
	off := n.slotOffset(i)
	return binary.LittleEndian.Uint16(n.buf[off:]), binary.LittleEndian.Uint16(n.buf[off+2:])
}

func (n *Node) setSlot(i int, offset, length uint16) {
	off := n.slotOffset(i)
	binary.LittleEndian.PutUint16(n.buf[off:], offset)
	binary.LittleEndian.PutUint16(n.buf[off+2:], length)
}

// GetCellData returns the raw bytes of the i-th cell via its slot.
func (n *Node) GetCellData(i int) []byte {
	if i < 0 || i >= n.KeysCount() {
		panic(fmt.Sprintf("node: cell index %d out of range (keys_count %d)", i, n.KeysCount()))
	}
	off, length := n.getSlot(i)
	return n.buf[off : off+length]
}

// GetKeyAt parses the 2-byte key-length prefix of the i-th cell and returns
// the key bytes.
func (n *Node) GetKeyAt(i int) []byte {
	cell := n.GetCellData(i)
	keyLen := binary.LittleEndian.Uint16(cell[0:2])
	return cell[2 : 2+keyLen]
}

// BinarySearch performs a classical lower-bound search over [0, KeysCount)
// using lexicographic byte comparison of keys. It returns the index at
// which key exists (found=true) or would be inserted (found=false).
func (n *Node) BinarySearch(key []byte) (index int, found bool) {
	count := n.KeysCount()
	lo, hi := 0, count
	for lo < hi {
		mid := (lo + hi) / 2
		cmp := bytes.Compare(n.GetKeyAt(mid), key)
		if cmp == 0 {
			return mid, true
		} else if cmp < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, false
}

// UsedSpace returns keys_count*SlotSize + (PageSize - heap_pointer).
func (n *Node) UsedSpace() int {
	h := n.GetHeader()
	return int(h.KeysCount)*SlotSize + (PageSize - int(h.HeapPointer))
}

// InsertCell inserts bytes as a new cell at slot index i, shifting slots
// [i, keys_count) right by one. Returns ErrKeyTooLarge-flavored error (via
// a plain bool) when the cell would not fit.
func (n *Node) InsertCell(i int, cellBytes []byte) bool {
	h := n.GetHeader()
	need := int(h.KeysCount+1)*SlotSize + len(cellBytes)
	avail := int(h.HeapPointer)
	if HeaderSize+need > avail {
		return false
	}

	newHeap := int(h.HeapPointer) - len(cellBytes)
	copy(n.buf[newHeap:], cellBytes)

	for j := int(h.KeysCount); j > i; j-- {
		off, length := n.getSlot(j - 1)
		n.setSlot(j, off, length)
	}
	n.setSlot(i, uint16(newHeap), uint16(len(cellBytes)))

	h.HeapPointer = uint16(newHeap)
	h.KeysCount++
	n.SetHeader(h)
	return true
}

// DeleteCell removes the cell at slot index i, compacting the heap and
// adjusting every slot whose cell lay below the deleted cell.
func (n *Node) DeleteCell(i int) {
	h := n.GetHeader()
	delOff, delLen := n.getSlot(i)

	// Shift bytes below the deleted cell upward by delLen: everything from
	// heap_pointer up to delOff moves up by delLen bytes.
	if int(delOff) > int(h.HeapPointer) {
		copy(n.buf[int(h.HeapPointer)+int(delLen):int(delOff)+int(delLen)], n.buf[h.HeapPointer:delOff])
	}

	// Any slot whose cell_offset was below the deleted cell's offset shifts
	// up by delLen.
	for j := 0; j < int(h.KeysCount); j++ {
		if j == i {
			continue
		}
		off, length := n.getSlot(j)
		if off < delOff {
			off += delLen
		}
		n.setSlot(j, off, length)
	}

	// Remove slot i by shifting the slot array left.
	for j := i; j < int(h.KeysCount)-1; j++ {
		off, length := n.getSlot(j + 1)
		n.setSlot(j, off, length)
	}

	h.HeapPointer += delLen
	h.KeysCount--
	n.SetHeader(h)
}

// UpdateLeafValue overwrites the trailing 16-byte value of leaf cell i in
// place.
func (n *Node) UpdateLeafValue(i int, value [ValueSize]byte) {
	cell := n.GetCellData(i)
	copy(cell[len(cell)-ValueSize:], value[:])
}

// ── Cell encoding ────────────────────────────────────────────────────────

// EncodeLeafCell serializes a key and a fixed 16-byte value as a LeafCell:
// [key_len u16][key bytes][value 16 bytes].
func EncodeLeafCell(key []byte, value [ValueSize]byte) []byte {
	out := make([]byte, 2+len(key)+ValueSize)
	binary.LittleEndian.PutUint16(out[0:2], uint16(len(key)))
	copy(out[2:], key)
	copy(out[2+len(key):], value[:])
	return out
}

// DecodeLeafCell splits a LeafCell back into its key and value.
func DecodeLeafCell(cell []byte) (key []byte, value [ValueSize]byte) {
	keyLen := binary.LittleEndian.Uint16(cell[0:2])
	key = cell[2 : 2+keyLen]
	copy(value[:], cell[2+keyLen:2+int(keyLen)+ValueSize])
	return key, value
}

// EncodeInternalCell serializes a key and a child page number as an
// InternalCell: [key_len u16][key bytes][child_page u32].
func EncodeInternalCell(key []byte, child PageID) []byte {
	out := make([]byte, 2+len(key)+4)
	binary.LittleEndian.PutUint16(out[0:2], uint16(len(key)))
	copy(out[2:], key)
	binary.LittleEndian.PutUint32(out[2+len(key):], uint32(child))
	return out
}

// DecodeInternalCell splits an InternalCell back into its key and child
// page number.
func DecodeInternalCell(cell []byte) (key []byte, child PageID) {
	keyLen := binary.LittleEndian.Uint16(cell[0:2])
	key = cell[2 : 2+keyLen]
	child = PageID(binary.LittleEndian.Uint32(cell[2+keyLen:]))
	return key, child
}

// MaxLeafCellSize is the largest a LeafCell may be and still possibly fit
// an empty page (used to reject oversized keys before ever touching disk).
func MaxLeafCellSize() int {
	return PageSize - HeaderSize - SlotSize
}

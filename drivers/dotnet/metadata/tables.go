package metadata

import (
	"encoding/binary"
	"fmt"
)

type tableID int

const noTable tableID = -1

// Table numbers as laid out in the #~ stream.
const (
	tModule tableID = iota
	tTypeRef
	tTypeDef
	tFieldPtr
	tField
	tMethodPtr
	tMethodDef
	tParamPtr
	tParam
	tInterfaceImpl
	tMemberRef
	tConstant
	tCustomAttribute
	tFieldMarshal
	tDeclSecurity
	tClassLayout
	tFieldLayout
	tStandAloneSig
	tEventMap
	tEventPtr
	tEvent
	tPropertyMap
	tPropertyPtr
	tProperty
	tMethodSemantics
	tMethodImpl
	tModuleRef
	tTypeSpec
	tImplMap
	tFieldRVA
	tEncLog
	tEncMap
	tAssembly
	tAssemblyProcessor
	tAssemblyOS
	tAssemblyRef
	tAssemblyRefProcessor
	tAssemblyRefOS
	tFile
	tExportedType
	tManifestResource
	tNestedClass
	tGenericParam
	tMethodSpec
	tGenericParamConstraint
	numTables
)

type codedIndex struct {
	tagBits uint
	tables  []tableID
}

var (
	cTypeDefOrRef        = &codedIndex{2, []tableID{tTypeDef, tTypeRef, tTypeSpec}}
	cHasConstant         = &codedIndex{2, []tableID{tField, tParam, tProperty}}
	cHasFieldMarshal     = &codedIndex{1, []tableID{tField, tParam}}
	cHasDeclSecurity     = &codedIndex{2, []tableID{tTypeDef, tMethodDef, tAssembly}}
	cMemberRefParent     = &codedIndex{3, []tableID{tTypeDef, tTypeRef, tModuleRef, tMethodDef, tTypeSpec}}
	cHasSemantics        = &codedIndex{1, []tableID{tEvent, tProperty}}
	cMethodDefOrRef      = &codedIndex{1, []tableID{tMethodDef, tMemberRef}}
	cMemberForwarded     = &codedIndex{1, []tableID{tField, tMethodDef}}
	cImplementation      = &codedIndex{2, []tableID{tFile, tAssemblyRef, tExportedType}}
	cCustomAttributeType = &codedIndex{3, []tableID{noTable, noTable, tMethodDef, tMemberRef, noTable}}
	cResolutionScope     = &codedIndex{2, []tableID{tModule, tModuleRef, tAssemblyRef, tTypeRef}}
	cTypeOrMethodDef     = &codedIndex{1, []tableID{tTypeDef, tMethodDef}}
	cHasCustomAttribute  = &codedIndex{5, []tableID{
		tMethodDef, tField, tTypeRef, tTypeDef, tParam, tInterfaceImpl, tMemberRef, tModule,
		tDeclSecurity, tProperty, tEvent, tStandAloneSig, tModuleRef, tTypeSpec, tAssembly,
		tAssemblyRef, tFile, tExportedType, tManifestResource, tGenericParam,
		tGenericParamConstraint, tMethodSpec,
	}}
)

type colKind int

const (
	colU16 colKind = iota
	colU32
	colString
	colGUID
	colBlob
	colIndex
	colCoded
)

type column struct {
	kind  colKind
	table tableID
	coded *codedIndex
}

var (
	u16  = column{kind: colU16}
	u32  = column{kind: colU32}
	str  = column{kind: colString}
	guid = column{kind: colGUID}
	blob = column{kind: colBlob}
)

func idx(t tableID) column        { return column{kind: colIndex, table: t} }
func coded(c *codedIndex) column { return column{kind: colCoded, coded: c} }

// schema lists the columns of every table. One-byte constant columns
// (Constant.Type, ClassLayout.PackingSize) are padded to two bytes on disk
// and modelled as u16.
var schema = [numTables][]column{
	tModule:                 {u16, str, guid, guid, guid},
	tTypeRef:                {coded(cResolutionScope), str, str},
	tTypeDef:                {u32, str, str, coded(cTypeDefOrRef), idx(tField), idx(tMethodDef)},
	tFieldPtr:               {idx(tField)},
	tField:                  {u16, str, blob},
	tMethodPtr:              {idx(tMethodDef)},
	tMethodDef:              {u32, u16, u16, str, blob, idx(tParam)},
	tParamPtr:               {idx(tParam)},
	tParam:                  {u16, u16, str},
	tInterfaceImpl:          {idx(tTypeDef), coded(cTypeDefOrRef)},
	tMemberRef:              {coded(cMemberRefParent), str, blob},
	tConstant:               {u16, coded(cHasConstant), blob},
	tCustomAttribute:        {coded(cHasCustomAttribute), coded(cCustomAttributeType), blob},
	tFieldMarshal:           {coded(cHasFieldMarshal), blob},
	tDeclSecurity:           {u16, coded(cHasDeclSecurity), blob},
	tClassLayout:            {u16, u32, idx(tTypeDef)},
	tFieldLayout:            {u32, idx(tField)},
	tStandAloneSig:          {blob},
	tEventMap:               {idx(tTypeDef), idx(tEvent)},
	tEventPtr:               {idx(tEvent)},
	tEvent:                  {u16, str, coded(cTypeDefOrRef)},
	tPropertyMap:            {idx(tTypeDef), idx(tProperty)},
	tPropertyPtr:            {idx(tProperty)},
	tProperty:               {u16, str, blob},
	tMethodSemantics:        {u16, idx(tMethodDef), coded(cHasSemantics)},
	tMethodImpl:             {idx(tTypeDef), coded(cMethodDefOrRef), coded(cMethodDefOrRef)},
	tModuleRef:              {str},
	tTypeSpec:               {blob},
	tImplMap:                {u16, coded(cMemberForwarded), str, idx(tModuleRef)},
	tFieldRVA:               {u32, idx(tField)},
	tEncLog:                 {u32, u32},
	tEncMap:                 {u32},
	tAssembly:               {u32, u16, u16, u16, u16, u32, blob, str, str},
	tAssemblyProcessor:      {u32},
	tAssemblyOS:             {u32, u32, u32},
	tAssemblyRef:            {u16, u16, u16, u16, u32, blob, str, str, blob},
	tAssemblyRefProcessor:   {u32, idx(tAssemblyRef)},
	tAssemblyRefOS:          {u32, u32, u32, idx(tAssemblyRef)},
	tFile:                   {u32, str, blob},
	tExportedType:           {u32, u32, str, str, coded(cImplementation)},
	tManifestResource:       {u32, u32, str, coded(cImplementation)},
	tNestedClass:            {idx(tTypeDef), idx(tTypeDef)},
	tGenericParam:           {u16, u16, coded(cTypeOrMethodDef), str},
	tMethodSpec:             {coded(cMethodDefOrRef), blob},
	tGenericParamConstraint: {idx(tGenericParam), coded(cTypeDefOrRef)},
}

const (
	heapStringsWide = 0x01
	heapGUIDWide    = 0x02
	heapBlobWide    = 0x04
	heapExtraData   = 0x40
)

type tableLayout struct {
	offset  int
	rowSize int
	cols    []int // column offsets within a row
	sizes   []int
}

// tableStream is a decoded #~ (or #-) stream.
type tableStream struct {
	data   []byte
	rows   [numTables]uint32
	layout [numTables]tableLayout
}

func parseTableStream(data []byte) (*tableStream, error) {
	if len(data) < 24 {
		return nil, fmt.Errorf("table stream too short: %d bytes", len(data))
	}
	heapSizes := data[6]
	valid := binary.LittleEndian.Uint64(data[8:])

	ts := &tableStream{data: data}
	pos := 24
	for i := 0; i < 64; i++ {
		if valid&(1<<uint(i)) == 0 {
			continue
		}
		if pos+4 > len(data) {
			return nil, fmt.Errorf("table stream truncated in row counts")
		}
		n := binary.LittleEndian.Uint32(data[pos:])
		pos += 4
		if i >= int(numTables) {
			if n != 0 {
				return nil, fmt.Errorf("unsupported metadata table 0x%02x", i)
			}
			continue
		}
		ts.rows[i] = n
	}
	if heapSizes&heapExtraData != 0 {
		pos += 4
	}

	for t := tableID(0); t < numTables; t++ {
		l := &ts.layout[t]
		l.offset = pos
		for _, c := range schema[t] {
			size := ts.columnSize(c, heapSizes)
			l.cols = append(l.cols, l.rowSize)
			l.sizes = append(l.sizes, size)
			l.rowSize += size
		}
		pos += l.rowSize * int(ts.rows[t])
		if pos > len(data) {
			return nil, fmt.Errorf("table 0x%02x extends past end of stream", int(t))
		}
	}

	return ts, nil
}

func (ts *tableStream) columnSize(c column, heapSizes byte) int {
	switch c.kind {
	case colU16:
		return 2
	case colU32:
		return 4
	case colString:
		return wide(heapSizes&heapStringsWide != 0)
	case colGUID:
		return wide(heapSizes&heapGUIDWide != 0)
	case colBlob:
		return wide(heapSizes&heapBlobWide != 0)
	case colIndex:
		return wide(ts.rows[c.table] >= 1<<16)
	case colCoded:
		var most uint32
		for _, t := range c.coded.tables {
			if t != noTable && ts.rows[t] > most {
				most = ts.rows[t]
			}
		}
		return wide(most >= 1<<(16-c.coded.tagBits))
	}
	return 0
}

func wide(b bool) int {
	if b {
		return 4
	}
	return 2
}

// cell returns the raw value at (1-based) row and column of table t, or 0
// when the row is out of range.
func (ts *tableStream) cell(t tableID, row uint32, col int) uint32 {
	if row == 0 || row > ts.rows[t] {
		return 0
	}
	l := &ts.layout[t]
	off := l.offset + int(row-1)*l.rowSize + l.cols[col]
	if l.sizes[col] == 4 {
		return binary.LittleEndian.Uint32(ts.data[off:])
	}
	return uint32(binary.LittleEndian.Uint16(ts.data[off:]))
}

// decode splits a coded index value into its table and row.
func (c *codedIndex) decode(v uint32) (tableID, uint32) {
	mask := uint32(1)<<c.tagBits - 1
	tag := int(v & mask)
	if tag >= len(c.tables) {
		return noTable, 0
	}
	return c.tables[tag], v >> c.tagBits
}

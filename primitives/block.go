package primitives

import "github.com/dagchaind/dagchaind/primitives/rlp"

// GhostdagParams are the anticone-tolerance and parent-count parameters a
// block was produced and must be validated under.
type GhostdagParams struct {
	K          uint32
	MaxParents uint32
}

// Block is a full block: header fields plus its transaction list. The
// block hash covers only the header (every field above Transactions except
// Signature).
type Block struct {
	Version       uint32
	SelectedParent Hash
	MergeParents  []Hash
	Timestamp     uint64
	Height        uint64
	StateRoot     Hash
	TxRoot        Hash
	ReceiptRoot   Hash
	ArtifactRoot  Hash
	BlueScore     uint64
	GhostdagParams GhostdagParams
	ProposerPubKey [32]byte
	VRFReveal      [32]byte
	Signature      Signature

	Transactions []*Transaction
}

// headerEncoding returns the canonical encoding of every header field
// (everything except Transactions and the trailing Signature), which is
// what both the block hash and the signing digest are computed over.
func (b *Block) headerEncoding() []byte {
	e := rlp.NewEncoder()
	e.WriteUint64(uint64(b.Version))
	e.WriteBytes(b.SelectedParent[:])
	e.WriteUint64(uint64(len(b.MergeParents)))
	for _, p := range b.MergeParents {
		e.WriteBytes(p[:])
	}
	e.WriteUint64(b.Timestamp)
	e.WriteUint64(b.Height)
	e.WriteBytes(b.StateRoot[:])
	e.WriteBytes(b.TxRoot[:])
	e.WriteBytes(b.ReceiptRoot[:])
	e.WriteBytes(b.ArtifactRoot[:])
	e.WriteUint64(b.BlueScore)
	e.WriteUint64(uint64(b.GhostdagParams.K))
	e.WriteUint64(uint64(b.GhostdagParams.MaxParents))
	e.WriteBytes(b.ProposerPubKey[:])
	e.WriteBytes(b.VRFReveal[:])
	return e.Bytes()
}

// Hash computes the block hash: keccak over the header, excluding the
// transaction list and the proposer's signature itself.
func (b *Block) Hash() Hash {
	return Keccak256(b.headerEncoding())
}

// SigningDigest is the hash the proposer signs; identical to Hash since
// the signature is not itself part of the header.
func (b *Block) SigningDigest() Hash {
	return b.Hash()
}

// Parents returns the full parent set (selected parent plus merge
// parents), the edges the DAG store indexes for children/tips.
func (b *Block) Parents() []Hash {
	out := make([]Hash, 0, 1+len(b.MergeParents))
	out = append(out, b.SelectedParent)
	out = append(out, b.MergeParents...)
	return out
}

// EncodeHeader serializes the header plus its trailing proposer signature,
// the unit the persistent store keeps per block (transactions are encoded
// separately by the caller).
func (b *Block) EncodeHeader() []byte {
	e := rlp.NewEncoder()
	e.WriteBytes(b.headerEncoding())
	e.WriteBytes([]byte{byte(b.Signature.Algorithm)})
	e.WriteBytes(b.Signature.R[:])
	e.WriteBytes(b.Signature.S[:])
	e.WriteBytes([]byte{b.Signature.V})
	e.WriteBytes(b.Signature.PubKey[:])
	e.WriteBytes(b.Signature.Sig[:])
	return e.Bytes()
}

// DecodeHeader parses bytes produced by EncodeHeader into a Block with no
// Transactions populated; the caller fills those in separately.
func DecodeHeader(raw []byte) (*Block, error) {
	d := rlp.NewDecoder(raw)
	headerBytes, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}

	hd := rlp.NewDecoder(headerBytes)
	b := &Block{}

	version, err := hd.ReadUint64()
	if err != nil {
		return nil, err
	}
	b.Version = uint32(version)

	spBytes, err := hd.ReadBytes()
	if err != nil {
		return nil, err
	}
	b.SelectedParent, _ = HashFromSlice(spBytes)

	mpCount, err := hd.ReadUint64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < mpCount; i++ {
		mpBytes, err := hd.ReadBytes()
		if err != nil {
			return nil, err
		}
		h, _ := HashFromSlice(mpBytes)
		b.MergeParents = append(b.MergeParents, h)
	}

	if b.Timestamp, err = hd.ReadUint64(); err != nil {
		return nil, err
	}
	if b.Height, err = hd.ReadUint64(); err != nil {
		return nil, err
	}

	for _, dst := range []*Hash{&b.StateRoot, &b.TxRoot, &b.ReceiptRoot, &b.ArtifactRoot} {
		raw, err := hd.ReadBytes()
		if err != nil {
			return nil, err
		}
		*dst, _ = HashFromSlice(raw)
	}

	if b.BlueScore, err = hd.ReadUint64(); err != nil {
		return nil, err
	}
	k, err := hd.ReadUint64()
	if err != nil {
		return nil, err
	}
	maxParents, err := hd.ReadUint64()
	if err != nil {
		return nil, err
	}
	b.GhostdagParams = GhostdagParams{K: uint32(k), MaxParents: uint32(maxParents)}

	pub, err := hd.ReadBytes()
	if err != nil {
		return nil, err
	}
	copy(b.ProposerPubKey[:], pub)
	vrf, err := hd.ReadBytes()
	if err != nil {
		return nil, err
	}
	copy(b.VRFReveal[:], vrf)

	algo, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(algo) == 1 {
		b.Signature.Algorithm = SigAlgorithm(algo[0])
	}
	r, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	s, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	v, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	pubKey, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	sig, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	copy(b.Signature.R[:], r)
	copy(b.Signature.S[:], s)
	if len(v) == 1 {
		b.Signature.V = v[0]
	}
	copy(b.Signature.PubKey[:], pubKey)
	copy(b.Signature.Sig[:], sig)

	return b, nil
}

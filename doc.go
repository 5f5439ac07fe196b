/*
Package efilz decompresses data produced by the EFI/UEFI and Tiano
compressors used for firmware sections.

Format: an 8-byte little-endian header (compressed size, original size)
followed by a most-significant-bit-first bitstream of blocks. Each block
starts with a 16-bit symbol count and three canonical Huffman code
descriptions:

  - the Extra Set (19 symbols) that encodes the next table's lengths,
  - the Char&Length Set (510 symbols): 0..255 are literal bytes,
    256..509 are match lengths 3..256,
  - the Position Set (up to 31 symbols): bit length of a match distance.

A match copies length bytes starting distance+1 bytes behind the current
output position. The source window may overlap the bytes being written.

The two variants differ only in the width of the Position Set count
field: 4 bits for Classic (EFI/UEFI), 5 bits for Tiano.

# Examples

Decompress into a buffer of known size:

	hdr, err := efilz.ReadHeader(src)
	if err != nil {
		return err
	}
	dst := make([]byte, hdr.OriginalSize)
	if err := efilz.DecompressInto(src, dst, efilz.Classic); err != nil {
		return err
	}

Append the decompressed bytes to an existing slice:

	out, err := efilz.Decompress(src, out[:0], efilz.Tiano)

Errors can be classified with errors.Is:

	if errors.Is(err, efilz.ErrMalformedSrcData) {
		// corrupt payload
	}
*/
package efilz

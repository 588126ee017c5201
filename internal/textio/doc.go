// Package textio reads encoded text files lazily, chunk by chunk or line by
// line.
//
// A Reader never splits a multi-byte code point across two chunks: when a
// full-sized read ends in the middle of a code point, the incomplete tail is
// held back and re-read as the start of the next chunk. Concatenating every
// chunk therefore reproduces exactly the decoding of the whole file, and
// Lines yields the same segments as strings.Split(decoded, "\n"), including
// a final segment when the file has no trailing newline.
//
// Supported encodings form a closed set (see Encoding). Each one has a fixed
// maximum code point width; the chunk size must be at least that wide.
//
//	r, err := textio.Open("events.log", textio.WithEncoding(textio.UTF8))
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	for line, err := range r.Lines() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(line)
//	}
package textio

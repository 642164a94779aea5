package mcp

import "io"

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

// StdioTransport joins a reader and a writer, typically os.Stdin and
// os.Stdout, into the stream the server speaks over.
func StdioTransport(in io.ReadCloser, out io.WriteCloser) io.ReadWriteCloser {
	return &stdioReadWriteCloser{reader: in, writer: out}
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *stdioReadWriteCloser) Write(p []byte) (int, error) {
	return s.writer.Write(p)
}

func (s *stdioReadWriteCloser) Close() error {
	rerr := s.reader.Close()
	werr := s.writer.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

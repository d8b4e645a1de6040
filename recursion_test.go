package ftp

import (
	"fmt"
	"net"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/corvidae/goftp/localfs"
)

// vnode is an in-memory filesystem node backing virtualFTPServer, just
// enough to exercise EnsureDir/ClearWorkingDir/RemoveDir/UploadDir/
// DownloadDir without a real server package.
type vnode struct {
	isDir    bool
	data     []byte
	children map[string]*vnode
}

func newVDir() *vnode { return &vnode{isDir: true, children: map[string]*vnode{}} }

// virtualFTPServer is a minimal, single-connection FTP server scripted
// entirely in memory: just enough of the command set (CWD/CDUP/MKD/RMD/DELE/
// PASV/MLSD/STOR/RETR) for the recursive directory helpers to run an entire
// upload/download/remove cycle against.
type virtualFTPServer struct {
	t        *testing.T
	listener net.Listener
	addr     string
	root     *vnode
	done     chan struct{}
}

func newVirtualFTPServer(t *testing.T) *virtualFTPServer {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	return &virtualFTPServer{t: t, listener: l, addr: l.Addr().String(), root: newVDir(), done: make(chan struct{})}
}

func (s *virtualFTPServer) stop() {
	s.listener.Close()
	<-s.done
}

// resolve walks path p (absolute or relative to cwd) from the root,
// returning its cleaned absolute form and the node if it exists.
func (s *virtualFTPServer) resolve(cwd, p string) (string, *vnode, error) {
	target := p
	if !strings.HasPrefix(p, "/") {
		target = path.Join(cwd, p)
	}
	target = path.Clean(target)
	node := s.root
	if target != "/" && target != "." {
		for _, part := range strings.Split(strings.Trim(target, "/"), "/") {
			child, ok := node.children[part]
			if !ok {
				return target, nil, fmt.Errorf("no such file or directory")
			}
			node = child
		}
	} else {
		target = "/"
	}
	return target, node, nil
}

func splitFTPCmd(line string) (string, string) {
	parts := strings.SplitN(line, " ", 2)
	cmd := strings.ToUpper(parts[0])
	args := ""
	if len(parts) > 1 {
		args = parts[1]
	}
	return cmd, args
}

func (s *virtualFTPServer) start() {
	go func() {
		defer close(s.done)
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fmt.Fprintf(conn, "220 virtual FTP ready\r\n")

		tc := textproto.NewConn(conn)
		defer tc.Close()

		cwd := "/"
		var dataListener net.Listener
		defer func() {
			if dataListener != nil {
				dataListener.Close()
			}
		}()

		for {
			line, err := tc.ReadLine()
			if err != nil {
				return
			}
			cmd, args := splitFTPCmd(line)

			switch cmd {
			case "USER":
				_ = tc.PrintfLine("331 need password")
			case "PASS":
				_ = tc.PrintfLine("230 logged in")
			case "TYPE":
				_ = tc.PrintfLine("200 ok")
			case "PWD":
				_ = tc.PrintfLine("257 \"%s\"", cwd)
			case "CWD":
				target, node, err := s.resolve(cwd, args)
				if err != nil || !node.isDir {
					_ = tc.PrintfLine("550 no such directory")
					continue
				}
				cwd = target
				_ = tc.PrintfLine("250 ok")
			case "CDUP":
				cwd = path.Dir(cwd)
				_ = tc.PrintfLine("250 ok")
			case "MKD":
				target, _, err := s.resolve(cwd, args)
				if err == nil {
					_ = tc.PrintfLine("550 already exists")
					continue
				}
				_, pnode, perr := s.resolve(cwd, path.Dir(target))
				if perr != nil || pnode == nil || !pnode.isDir {
					_ = tc.PrintfLine("550 no such directory")
					continue
				}
				pnode.children[path.Base(target)] = newVDir()
				_ = tc.PrintfLine("257 \"%s\" created", target)
			case "RMD":
				target, node, err := s.resolve(cwd, args)
				if err != nil || node == nil || !node.isDir {
					_ = tc.PrintfLine("550 no such directory")
					continue
				}
				if len(node.children) > 0 {
					_ = tc.PrintfLine("550 directory not empty")
					continue
				}
				_, pnode, _ := s.resolve(cwd, path.Dir(target))
				delete(pnode.children, path.Base(target))
				_ = tc.PrintfLine("250 ok")
			case "DELE":
				target, node, err := s.resolve(cwd, args)
				if err != nil || node == nil || node.isDir {
					_ = tc.PrintfLine("550 no such file")
					continue
				}
				_, pnode, _ := s.resolve(cwd, path.Dir(target))
				delete(pnode.children, path.Base(target))
				_ = tc.PrintfLine("250 ok")
			case "EPSV":
				_ = tc.PrintfLine("502 not implemented")
			case "PASV":
				dl, derr := net.Listen("tcp", "127.0.0.1:0")
				if derr != nil {
					_ = tc.PrintfLine("425 cannot open data connection")
					continue
				}
				dataListener = dl
				_, portStr, _ := net.SplitHostPort(dl.Addr().String())
				port := 0
				_, _ = fmt.Sscanf(portStr, "%d", &port)
				_ = tc.PrintfLine("227 Entering Passive Mode (127,0,0,1,%d,%d).", port/256, port%256)
			case "MLSD":
				s.serveMLSD(tc, dataListener, cwd, args)
			case "STOR":
				s.serveStor(tc, dataListener, cwd, args)
			case "RETR":
				s.serveRetr(tc, dataListener, cwd, args)
			case "QUIT":
				_ = tc.PrintfLine("221 bye")
				return
			default:
				_ = tc.PrintfLine("502 not implemented")
			}
		}
	}()
}

func (s *virtualFTPServer) serveMLSD(tc *textproto.Conn, dl net.Listener, cwd, args string) {
	listDir := cwd
	if args != "" {
		var err error
		listDir, _, err = s.resolve(cwd, args)
		if err != nil {
			_ = tc.PrintfLine("550 no such directory")
			return
		}
	}
	_, node, err := s.resolve(cwd, listDir)
	if err != nil || node == nil {
		_ = tc.PrintfLine("550 no such directory")
		return
	}

	_ = tc.PrintfLine("150 opening data connection")
	dconn, aerr := dl.Accept()
	if aerr != nil {
		_ = tc.PrintfLine("425 could not accept data connection")
		return
	}
	for name, child := range node.children {
		if child.isDir {
			fmt.Fprintf(dconn, "Type=dir;Modify=20230101000000; %s\r\n", name)
		} else {
			fmt.Fprintf(dconn, "Type=file;Size=%d;Modify=20230101000000; %s\r\n", len(child.data), name)
		}
	}
	dconn.Close()
	_ = tc.PrintfLine("226 transfer complete")
}

func (s *virtualFTPServer) serveStor(tc *textproto.Conn, dl net.Listener, cwd, args string) {
	target, _, err := s.resolve(cwd, args)
	_, pnode, perr := s.resolve(cwd, path.Dir(target))
	if err == nil || perr != nil || pnode == nil || !pnode.isDir {
		_ = tc.PrintfLine("550 cannot store file")
		return
	}

	_ = tc.PrintfLine("150 opening data connection")
	dconn, aerr := dl.Accept()
	if aerr != nil {
		_ = tc.PrintfLine("425 could not accept data connection")
		return
	}
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, rerr := dconn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if rerr != nil {
			break
		}
	}
	dconn.Close()
	pnode.children[path.Base(target)] = &vnode{data: buf}
	_ = tc.PrintfLine("226 transfer complete")
}

func (s *virtualFTPServer) serveRetr(tc *textproto.Conn, dl net.Listener, cwd, args string) {
	_, node, err := s.resolve(cwd, args)
	if err != nil || node == nil || node.isDir {
		_ = tc.PrintfLine("550 no such file")
		return
	}

	_ = tc.PrintfLine("150 opening data connection")
	dconn, aerr := dl.Accept()
	if aerr != nil {
		_ = tc.PrintfLine("425 could not accept data connection")
		return
	}
	dconn.Write(node.data)
	dconn.Close()
	_ = tc.PrintfLine("226 transfer complete")
}

func createUploadFixture(t *testing.T, dir string) {
	if err := os.WriteFile(filepath.Join(dir, "file1.txt"), []byte("content1"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "subdir", "file2.txt"), []byte("content2"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "subdir", "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "subdir", "nested", "file3.txt"), []byte("content3"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRecursiveHelpers(t *testing.T) {
	s := newVirtualFTPServer(t)
	s.start()
	defer s.stop()

	c, err := Dial(s.addr, WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = c.Quit() }()
	if err := c.Login("anonymous", "anonymous"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	srcDir := t.TempDir()
	createUploadFixture(t, srcDir)

	if err := c.UploadDir(localfs.OSFS{}, srcDir, "/uploaded"); err != nil {
		t.Fatalf("UploadDir failed: %v", err)
	}

	_, root, err := s.resolve("/", "/uploaded")
	if err != nil || root == nil {
		t.Fatalf("uploaded tree missing on server: %v", err)
	}
	if _, ok := root.children["file1.txt"]; !ok {
		t.Error("file1.txt missing after UploadDir")
	}
	sub, ok := root.children["subdir"]
	if !ok || !sub.isDir {
		t.Fatal("subdir missing after UploadDir")
	}
	if _, ok := sub.children["file2.txt"]; !ok {
		t.Error("subdir/file2.txt missing after UploadDir")
	}
	nested, ok := sub.children["nested"]
	if !ok || !nested.isDir {
		t.Fatal("subdir/nested missing after UploadDir")
	}
	if _, ok := nested.children["file3.txt"]; !ok {
		t.Error("subdir/nested/file3.txt missing after UploadDir")
	}

	destDir := t.TempDir()
	if err := c.DownloadDir(localfs.OSFS{}, "/uploaded", destDir); err != nil {
		t.Fatalf("DownloadDir failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(destDir, "subdir", "nested", "file3.txt"))
	if err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}
	if string(got) != "content3" {
		t.Errorf("downloaded content = %q, want %q", got, "content3")
	}

	if err := c.RemoveDir("/uploaded"); err != nil {
		t.Fatalf("RemoveDir failed: %v", err)
	}
	if _, _, err := s.resolve("/", "/uploaded"); err == nil {
		t.Error("/uploaded should have been removed")
	}
}

func TestRemoveDir_EmptyDir(t *testing.T) {
	s := newVirtualFTPServer(t)
	s.start()
	defer s.stop()

	c, err := Dial(s.addr, WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = c.Quit() }()
	if err := c.Login("anonymous", "anonymous"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := c.EnsureDir("empty_dir"); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if _, err := c.Cd("/"); err != nil {
		t.Fatalf("Cd failed: %v", err)
	}
	if err := c.RemoveDir("empty_dir"); err != nil {
		t.Fatalf("RemoveDir on empty dir failed: %v", err)
	}
	if _, _, err := s.resolve("/", "/empty_dir"); err == nil {
		t.Error("empty_dir should have been removed")
	}
}

func TestRemoveDir_NonExistent(t *testing.T) {
	s := newVirtualFTPServer(t)
	s.start()
	defer s.stop()

	c, err := Dial(s.addr, WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = c.Quit() }()
	if err := c.Login("anonymous", "anonymous"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := c.RemoveDir("nonexistent_dir"); err == nil {
		t.Error("RemoveDir should fail on a non-existent directory")
	}
}

package ftp

import (
	"path"
	"strings"

	"github.com/corvidae/goftp/localfs"
)

// EnsureDir makes sure every component of path exists below the working
// directory, creating whichever components are missing, and leaves the
// session CWD'd into path (spec §4.5 ensureDir). An absolute path first
// CWDs to "/"; MKD failures (the component already exists) are ignored.
func (c *Client) EnsureDir(dir string) error {
	if strings.HasPrefix(dir, "/") {
		if _, err := c.Cd("/"); err != nil {
			return err
		}
	}
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		_, _ = c.request("MKD " + c.protectWhitespace(part))
		if _, err := c.Cd(part); err != nil {
			return err
		}
	}
	return nil
}

// ClearWorkingDir recursively deletes every entry of the working directory,
// leaving the directory itself in place (spec §4.5 clearWorkingDir).
func (c *Client) ClearWorkingDir() error {
	entries, err := c.List("")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		if e.IsDir {
			if _, err := c.Cd(e.Name); err != nil {
				return err
			}
			if err := c.ClearWorkingDir(); err != nil {
				return err
			}
			if _, err := c.Cdup(); err != nil {
				return err
			}
			if _, err := c.RemoveEmptyDir(e.Name); err != nil {
				return err
			}
		} else if _, err := c.Remove(e.Name); err != nil {
			return err
		}
	}
	return nil
}

// RemoveDir recursively deletes dir and everything under it (spec §4.5
// removeDir): CWD into it, clear it, CDUP, then RMD the now-empty directory.
func (c *Client) RemoveDir(dir string) error {
	if _, err := c.Cd(dir); err != nil {
		return err
	}
	if err := c.ClearWorkingDir(); err != nil {
		return err
	}
	pwd, err := c.Pwd()
	if err != nil {
		return err
	}
	if pwd != "/" {
		if _, err := c.Cdup(); err != nil {
			return err
		}
	}
	_, err = c.RemoveEmptyDir(path.Base(dir))
	return err
}

// UploadDir mirrors the local tree rooted at localDir to remoteDir,
// creating remote directories as needed (spec §4.5 uploadDir). If remoteDir
// is empty, the mirror lands in the working directory and the working
// directory is left unchanged either way.
func (c *Client) UploadDir(fs localfs.FS, localDir, remoteDir string) error {
	var pwd string
	if remoteDir != "" {
		var err error
		pwd, err = c.Pwd()
		if err != nil {
			return err
		}
		if err := c.EnsureDir(remoteDir); err != nil {
			return err
		}
	}

	err := c.uploadTree(fs, localDir)
	if pwd != "" {
		if _, rerr := c.Cd(pwd); err == nil && rerr != nil {
			err = rerr
		}
	}
	return err
}

func (c *Client) uploadTree(fs localfs.FS, localDir string) error {
	entries, err := fs.ReadDir(localDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		localPath := localfs.Join(localDir, e.Name)
		if e.IsDir {
			if err := c.EnsureDir(e.Name); err != nil {
				return err
			}
			if err := c.uploadTree(fs, localPath); err != nil {
				return err
			}
			if _, err := c.Cdup(); err != nil {
				return err
			}
			continue
		}
		f, err := fs.OpenRead(localPath, 0)
		if err != nil {
			return err
		}
		_, err = c.Upload(e.Name, f, UploadOptions{}, nil)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// DownloadDir mirrors remoteDir (or the working directory, if remoteDir is
// empty) to localDir, creating local directories as needed (spec §4.5
// downloadDir).
func (c *Client) DownloadDir(fs localfs.FS, remoteDir, localDir string) error {
	if remoteDir != "" {
		if _, err := c.Cd(remoteDir); err != nil {
			return err
		}
	}
	return c.downloadTree(fs, localDir)
}

func (c *Client) downloadTree(fs localfs.FS, localDir string) error {
	if err := fs.Mkdir(localDir); err != nil {
		return err
	}
	entries, err := c.List("")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		localPath := localfs.Join(localDir, e.Name)
		if e.IsDir {
			if _, err := c.Cd(e.Name); err != nil {
				return err
			}
			if err := c.downloadTree(fs, localPath); err != nil {
				return err
			}
			if _, err := c.Cdup(); err != nil {
				return err
			}
			continue
		}
		w, err := fs.OpenWrite(localPath, 0)
		if err != nil {
			return err
		}
		_, err = c.Download(w, e.Name, DownloadOptions{}, nil)
		w.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

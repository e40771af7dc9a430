// Package storage keeps workbooks as files in a directory. A workbook is
// either one XLSX file holding every sheet, or a directory holding one
// CSV, TSV or Parquet file per sheet, optionally compressed with gzip, bzip2,
// xz or zstd.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sheetsql/domain/model"
)

var (
	// ErrWorkbookNotFound is returned when no file or directory holds the workbook
	ErrWorkbookNotFound = errors.New("workbook not found")
	// ErrSheetNotFound is returned when the workbook holds no such sheet
	ErrSheetNotFound = errors.New("sheet not found")
)

// Workbook layouts reported in model.WorkbookInfo.Format
const (
	LayoutXLSX      = "xlsx"
	LayoutDirectory = "directory"
)

// loadConcurrency bounds the sheets decoded at once by LoadWorkbook
const loadConcurrency = 4

// sheetFile is one per-sheet file of a directory workbook
type sheetFile struct {
	path        string
	format      Format
	compression CompressionType
}

// Directory implements the sheet data provider and workbook catalog over the
// files of one base directory.
type Directory struct {
	baseDir string
	options Options
	// mu serializes writes; XLSX persistence rewrites the whole file
	mu sync.Mutex
}

// NewDirectory creates a directory store. New workbooks use opts.
func NewDirectory(baseDir string, opts Options) *Directory {
	if opts.Format == FormatUnsupported {
		opts.Format = FormatXLSX
	}
	return &Directory{baseDir: baseDir, options: opts}
}

// Workbooks lists every workbook under the base directory, sorted by name.
// Files and directories whose names are not valid workbook names are skipped.
func (d *Directory) Workbooks(ctx context.Context) ([]model.WorkbookInfo, error) {
	entries, err := os.ReadDir(d.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.WorkbookInfo{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", d.baseDir, err)
	}

	infos := make([]model.WorkbookInfo, 0, len(entries))
	seen := map[string]bool{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := workbookName(entry)
		if name == "" || seen[name] {
			continue
		}
		info, ok, err := d.Lookup(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			seen[name] = true
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func workbookName(entry os.DirEntry) string {
	name := entry.Name()
	if entry.IsDir() {
		if model.ValidateName("workbook", name) != nil {
			return ""
		}
		return name
	}
	base, format, _ := detectFile(name)
	if format != FormatXLSX || model.ValidateName("workbook", base) != nil {
		return ""
	}
	return base
}

// Lookup describes one workbook. An XLSX file wins over a directory of the
// same name.
func (d *Directory) Lookup(_ context.Context, name string) (model.WorkbookInfo, bool, error) {
	if err := model.ValidateName("workbook", name); err != nil {
		return model.WorkbookInfo{}, false, err
	}

	xlsxPath := d.xlsxPath(name)
	if _, err := os.Stat(xlsxPath); err == nil {
		sheets, err := xlsxSheets(xlsxPath)
		if err != nil {
			return model.WorkbookInfo{}, false, err
		}
		return model.WorkbookInfo{Name: name, Location: xlsxPath, Format: LayoutXLSX, Sheets: sheets}, true, nil
	}

	dirPath := filepath.Join(d.baseDir, name)
	st, err := os.Stat(dirPath)
	if err != nil || !st.IsDir() {
		return model.WorkbookInfo{}, false, nil
	}
	files, err := sheetFiles(dirPath)
	if err != nil {
		return model.WorkbookInfo{}, false, err
	}
	sheets := make([]string, 0, len(files))
	for sheet := range files {
		sheets = append(sheets, sheet)
	}
	sort.Strings(sheets)
	return model.WorkbookInfo{Name: name, Location: dirPath, Format: LayoutDirectory, Sheets: sheets}, true, nil
}

// sheetFiles maps sheet names to their files in a directory workbook. When two
// files share a sheet name the first in directory order is used.
func sheetFiles(dir string) (map[string]sheetFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	files := make(map[string]sheetFile, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base, format, compression := detectFile(entry.Name())
		if format == FormatUnsupported || format == FormatXLSX {
			continue
		}
		if model.ValidateName("sheet", base) != nil {
			continue
		}
		if _, dup := files[base]; dup {
			continue
		}
		files[base] = sheetFile{path: filepath.Join(dir, entry.Name()), format: format, compression: compression}
	}
	return files, nil
}

// LoadSheet reads and types one sheet
func (d *Directory) LoadSheet(ctx context.Context, workbook, sheet string) (*model.SheetData, error) {
	info, ok, err := d.Lookup(ctx, workbook)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkbookNotFound, workbook)
	}

	if info.Format == LayoutXLSX {
		grids, err := readXLSX(info.Location, sheet)
		if err != nil {
			return nil, err
		}
		return grids[sheet].toSheetData(), nil
	}

	files, err := sheetFiles(info.Location)
	if err != nil {
		return nil, err
	}
	file, ok := files[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrSheetNotFound, workbook, sheet)
	}
	return loadSheetFile(ctx, file)
}

func loadSheetFile(ctx context.Context, file sheetFile) (*model.SheetData, error) {
	switch file.format {
	case FormatCSV, FormatTSV:
		g, err := readDelimited(file.path, file.format, file.compression)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file.path, err)
		}
		return g.toSheetData(), nil
	case FormatParquet:
		data, err := readParquet(ctx, file.path, file.compression)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file.path, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported sheet file: %s", file.path)
	}
}

// LoadWorkbook reads every sheet of a workbook. Sheets are decoded
// concurrently; the first failure cancels the rest.
func (d *Directory) LoadWorkbook(ctx context.Context, workbook string) (map[string]*model.SheetData, error) {
	info, ok, err := d.Lookup(ctx, workbook)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkbookNotFound, workbook)
	}

	var (
		mu  sync.Mutex
		out = make(map[string]*model.SheetData, len(info.Sheets))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)

	if info.Format == LayoutXLSX {
		// excelize reads the file once; typing the grids runs in parallel
		grids, err := readXLSX(info.Location, info.Sheets...)
		if err != nil {
			return nil, err
		}
		for name, raw := range grids {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				data := raw.toSheetData()
				mu.Lock()
				out[name] = data
				mu.Unlock()
				return nil
			})
		}
	} else {
		files, err := sheetFiles(info.Location)
		if err != nil {
			return nil, err
		}
		for name, file := range files {
			g.Go(func() error {
				data, err := loadSheetFile(gctx, file)
				if err != nil {
					return err
				}
				mu.Lock()
				out[name] = data
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// PersistSheet writes one sheet back. Unknown workbooks are created in the
// configured layout; unknown sheets of a directory workbook get a file in the
// configured sheet format. Files are replaced atomically.
func (d *Directory) PersistSheet(ctx context.Context, workbook, sheet string, data *model.SheetData) error {
	if err := model.ValidateName("sheet", sheet); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	info, ok, err := d.Lookup(ctx, workbook)
	if err != nil {
		return err
	}
	if !ok {
		if d.options.Format == FormatXLSX {
			if err := os.MkdirAll(d.baseDir, 0o750); err != nil {
				return fmt.Errorf("failed to create %s: %w", d.baseDir, err)
			}
			return writeXLSX(d.xlsxPath(workbook), sheet, data)
		}
		info = model.WorkbookInfo{Name: workbook, Location: filepath.Join(d.baseDir, workbook), Format: LayoutDirectory}
		if err := os.MkdirAll(info.Location, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", info.Location, err)
		}
	}

	if info.Format == LayoutXLSX {
		return writeXLSX(info.Location, sheet, data)
	}

	files, err := sheetFiles(info.Location)
	if err != nil {
		return err
	}
	file, ok := files[sheet]
	if !ok {
		file = sheetFile{
			path:        filepath.Join(info.Location, sheet+d.options.SheetExtension()),
			format:      d.sheetFormat(),
			compression: d.options.Compression,
		}
	}
	switch file.format {
	case FormatCSV, FormatTSV:
		return writeDelimited(file.path, file.format, file.compression, fromSheetData(data))
	case FormatParquet:
		return writeParquet(file.path, file.compression, data)
	default:
		return fmt.Errorf("unsupported sheet file: %s", file.path)
	}
}

func (d *Directory) sheetFormat() Format {
	if d.options.Format == FormatXLSX {
		return FormatCSV
	}
	return d.options.Format
}

func (d *Directory) xlsxPath(name string) string {
	return filepath.Join(d.baseDir, name+extXLSX)
}
